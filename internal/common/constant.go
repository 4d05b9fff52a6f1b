package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// DefaultEventCap is the number of most recent events the log retains.
const DefaultEventCap = 10000
