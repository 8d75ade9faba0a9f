// Package websocket admits dashboard viewers: it checks origin and admission
// limits, upgrades the request and runs one session per connection.
package websocket
