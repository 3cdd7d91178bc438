// Package common contains shared constants and sentinel errors used across
// papersync components.
package common

import "time"

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on outbound requests.
const AccessTokenHeaderName = "Authorization"

// TombstoneRetention is how long deletion tombstones are kept before purge.
const TombstoneRetention = 90 * 24 * time.Hour

// MaxFileTransfers bounds how many independent attachment uploads or
// downloads may run concurrently.
const MaxFileTransfers = 3
