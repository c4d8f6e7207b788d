// package formatter provides functions to export playlist documents to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
)

// PlaylistExport is a fetched playlist document and the resource it was read from.
type PlaylistExport struct {
	Ref      models.ResourceRef       `json:"ref"`
	Document *models.PlaylistDocument `json:"document"`
}

// playlistMetadata is the playlist without its songs.
type playlistMetadata struct {
	Ref         models.ResourceRef `json:"ref"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Songs       int                `json:"songs"`
}

func (e *PlaylistExport) title() string {
	if e.Document.Title != "" {
		return e.Document.Title
	}
	return e.Ref.Identifier
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: Identifier, Name, Service, Title, Author
func ExportToCSV(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Identifier", "Name", "Service", "Title", "Author"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range export.Document.Songs {
		record := []string{song.Identifier, song.Name, song.Service.String(), song.Title, song.Author}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown format with optional cover image
func ExportToMarkdown(export *PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.title())

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	if export.Document.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Document.Description)
	}

	fmt.Fprintf(&buf, "**Songs**: %d\n", len(export.Document.Songs))
	fmt.Fprintf(&buf, "**Resource**: `%s`\n\n", export.Ref)

	buf.WriteString("## Songs\n\n")
	for i, song := range export.Document.Songs {
		title := song.Title
		if title == "" {
			title = song.Identifier
		}
		author := song.Author
		if author == "" {
			author = song.Name
		}
		fmt.Fprintf(&buf, "%d. %s - %s (`%s`)\n", i+1, author, title, song.Identifier)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.title())
	if export.Document.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Document.Description)
	}
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(export.Document.Songs))

	for i, song := range export.Document.Songs {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, song.Author, song.Title)
	}

	return buf.Bytes(), nil
}

// DecodeImage decodes a playlist image stored as a base64 data URL or bare base64 string.
func DecodeImage(image string) ([]byte, error) {
	if image == "" {
		return nil, fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}

	payload := image
	if rest, ok := strings.CutPrefix(image, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, fmt.Errorf("%w: image is not a base64 data URL", shared.ErrInvalidInput)
		}
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", shared.ErrInvalidInput, err)
	}
	return data, nil
}

// ToMetadataJSON generates a JSON representation of playlist metadata (without songs)
func ToMetadataJSON(export *PlaylistExport) ([]byte, error) {
	return shared.MarshalJSON(playlistMetadata{
		Ref:         export.Ref,
		Title:       export.Document.Title,
		Description: export.Document.Description,
		Songs:       len(export.Document.Songs),
	}, true)
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	SongsFile    string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to the playlist identifier as the base filename & creates {base}_songs.csv and {base}_metadata.json
func WriteCSVExport(export *PlaylistExport, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = export.Ref.Identifier
	}

	csvData, err := ExportToCSV(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	songsFile := baseFilepath + "_songs.csv"
	if err := os.WriteFile(songsFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(export)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		SongsFile:    songsFile,
		MetadataFile: metadataFile,
	}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist identifier. The document's image, when present and decodable,
// is written next to the README as cover.jpg; an undecodable image is skipped.
func WriteMarkdownExport(export *PlaylistExport, outputDir string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = export.Ref.Identifier
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if export.Document.Image != "" {
		if imageData, err := DecodeImage(export.Document.Image); err == nil {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				return nil, fmt.Errorf("failed to save cover image: %w", err)
			}
			result.CoverImage = coverImagePath
			result.Files = append(result.Files, coverImagePath)
		}
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {identifier}_songs.txt as the filename.
func WriteTextExport(export *PlaylistExport, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_songs.txt", export.Ref.Identifier)
	}

	textData, err := ExportToText(export)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
