package control

import "errors"

// Domain errors for the control package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, control.ErrNoZones) {
//	    // no cooling policy exists; fatal
//	}
var (
	// ErrMissingField is returned when a policy entity omits a required field.
	ErrMissingField = errors.New("control: missing required field")

	// ErrPolicyFile is returned when a policy file cannot be read or parsed.
	ErrPolicyFile = errors.New("control: policy file")

	// ErrUnknownZone is returned when a fan or action names a zone that is
	// not part of the loaded configuration.
	ErrUnknownZone = errors.New("control: unknown zone")

	// ErrUnknownGroup is returned when an event names a group that is not
	// defined in the group policy file.
	ErrUnknownGroup = errors.New("control: unknown group")

	// ErrUnknownAction is returned when an event names an action kind the
	// runtime does not implement.
	ErrUnknownAction = errors.New("control: unknown action")

	// ErrUnknownHandler is returned when a signal trigger names a handler
	// kind the runtime does not implement.
	ErrUnknownHandler = errors.New("control: unknown signal handler")

	// ErrUnknownTrigger is returned when an event trigger has an
	// unrecognized class.
	ErrUnknownTrigger = errors.New("control: unknown trigger class")

	// ErrDuplicateTimer is returned when enabling an event would register a
	// second timer with the same type and name.
	ErrDuplicateTimer = errors.New("control: duplicate timer")

	// ErrLoadDisabled is returned when loading was disabled by an earlier
	// failed reload. The daemon keeps running the last good configuration
	// until it is restarted.
	ErrLoadDisabled = errors.New("control: loading disabled after failed reload")

	// ErrNoZones is returned when power-on is reported while no zones are
	// enabled. No cooling policy can execute; the daemon must not keep
	// running silently.
	ErrNoZones = errors.New("control: power on with no zones enabled")

	// ErrUnknownMode is returned when a thermal mode outside the zone's
	// supported set is requested.
	ErrUnknownMode = errors.New("control: unsupported thermal mode")
)
