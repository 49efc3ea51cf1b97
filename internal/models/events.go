package models

// Server to client events. Every connected client receives every event.
const (
	EventReceiveEmergency       = "RECEIVE_EMERGENCY"
	EventReceiveLocation        = "RECEIVE_LOCATION"
	EventStopAlarm              = "STOP_ALARM"
	EventReceiveAcknowledgement = "RECEIVE_ACKNOWLEDGEMENT"
)

// Client to server events.
const (
	EventLocationUpdate = "LOCATION_UPDATE"

	// Sent by older clients after the matching HTTP call. The server does not
	// relay them; it raises the corresponding broadcasts itself.
	EventEmergencyTriggered  = "EMERGENCY_TRIGGERED"
	EventAlarmStop           = "ALARM_STOP"
	EventAcknowledgementSent = "ACKNOWLEDGEMENT_SENT"
)
