package common

// AuthorizationHeaderName is the HTTP header carrying the session token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the session token inside the Authorization header.
const BearerPrefix = "Bearer "
