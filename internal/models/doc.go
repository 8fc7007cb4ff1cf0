// Package models defines the domain entities the rest of the module hands to callers.
//
// Every type here is an immutable value assembled once from a Spotify DTO by the mapping functions in
// package services. None of them keep a reference to the wire representation.
//
//   - Catalog: [Track], [Artist], [Album], [Image]
//   - Player: [Device], [PlaybackContext], [CurrentPlayback], [RecentTrack], [RecentlyPlayed]
//   - Library: [Playlist], [PlaylistTrack], [User]
//   - Paging: [Page] (offset based) and [RecentlyPlayed] (cursor based)
//   - Search: [SearchTrackResult]
//
// [AuthEvent] is the one persisted entity: an audit row for each session state transition.
package models
