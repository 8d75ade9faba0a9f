// Package session runs one viewer connection.
//
// A Session owns a private hub subscription and a handle to the command funnel.
// Two pumps share the connection: the write pump forwards telemetry (and keepalive pings),
// the read pump turns text frames into commands. They are coupled through an errgroup so that
// the first terminal condition on either side abandons both and closes the connection.
package session
