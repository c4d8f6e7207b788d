// Package services defines the [Network] boundary to the content network node and implements it over HTTP.
//
// # Network Interface
//
// Every other package talks to the node through [Network], which keeps the download coordinator
// and the publish queue testable against in-memory fakes.
//
// # Node Implementation
//
// [NodeService] maps each [Network] operation onto the node's arbitrary-resource REST API:
//   - Publish : POST /arbitrary/{service}/{name}/{identifier}/base64, one request per bundle resource
//   - FetchResource : GET /arbitrary/{service}/{name}/{identifier}?encoding=base64
//   - FetchResourceStatus : GET /arbitrary/resource/status/{service}/{name}/{identifier}?build=true
//   - FetchResourceProperties : GET /arbitrary/resource/properties/{service}/{name}/{identifier}
//   - Search : GET /arbitrary/resources/search
//
// Raw requests go through [APIService], which attaches the X-API-KEY header and waits on a shared
// [rate.Limiter] so that many concurrent status pollers cannot flood the node.
//
// # Identity
//
// [Identity] resolves the publisher name. [StaticIdentity] returns a configured name.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAPIRequest] : non-2xx response, wrapping the node's message
//   - [shared.ErrResourceNotFound] : the resource is not published
//   - [shared.ErrPlaylistNotFound] : a playlist document does not exist on the node
//   - [shared.ErrIdentityUnavailable] : no publisher name configured
package services
