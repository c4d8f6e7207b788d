// Package publish turns user submissions into the resource bundles published to the network.
//
// A [Job] is created through [NewAudioJob], [NewPodcastJob] or [NewAudiobookJob], which reject
// submissions missing a title, a primary file or a category with [shared.ErrMissingArgument].
//
// [Build] is a pure transformation producing, under one identifier:
//   - the primary AUDIO (or VIDEO) resource, its description carrying "key=value;" metadata ([FormatMetadata])
//   - an optional THUMBNAIL re-encoded from the cover image ([MakeThumbnail])
//   - a DOCUMENT with structured metadata for podcasts and audiobooks
//
// Identifiers are prefix + [Sanitize](title)[:20] + "_" + an 8 character random suffix.
// [FromFile] reads an audio file and prefills blank fields from its embedded tags.
package publish
