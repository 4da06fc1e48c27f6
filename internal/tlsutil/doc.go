// Package tlsutil holds the hardened TLS settings shared by outbound HTTP
// clients and Redis connections: TLS 1.2 minimum and AEAD cipher suites only.
package tlsutil
