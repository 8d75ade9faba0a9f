// Package broadcast implements the telemetry broadcast hub.
//
// One producer publishes samples; every subscription keeps its own bounded ring backlog.
// When a viewer falls behind, the oldest unread samples are discarded and the viewer is told how many it missed.
// Publish never blocks on a subscriber: freshness beats completeness.
package broadcast
