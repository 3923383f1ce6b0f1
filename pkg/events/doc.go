// Package events provides the in-process broker that carries remediation
// events from the engine to notification delivery. Publishing never blocks:
// when a buffer is full the event is dropped and counted.
package events
