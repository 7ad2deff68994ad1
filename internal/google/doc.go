// Package google provides OAuth2 authorization and token management for the
// Google Calendar API.
//
// A single Google account is connected per installation. Its token is
// persisted in the settings table and cached in memory through the mcp-oauth
// token store, so refreshed tokens survive restarts.
package google
