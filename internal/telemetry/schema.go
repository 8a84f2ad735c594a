package telemetry

// Kind is the declared type of a channel. It never changes after the schema is built.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Channel declares one telemetry quantity
type Channel struct {
	Name        string
	Kind        Kind
	Default     float64 // initial value; bools use 0/1
	DisplayName string  // host property name, empty means FlightData.<Name>
	Unit        string
}

// PropertyName is the name the host surface exposes the channel under
func (c Channel) PropertyName() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return "FlightData." + c.Name
}

// DefaultSchema returns the channels published by the SimConnect companion feed.
// Names match the simulation variable names, with spaces and indices replaced by underscores.
func DefaultSchema() []Channel {
	return []Channel{
		// body-frame accelerations, ft/s^2; these drive the joystick axes by default
		{Name: "ACCELERATION_BODY_X", Kind: KindFloat, Unit: "ft/s^2"},
		{Name: "ACCELERATION_BODY_Y", Kind: KindFloat, Unit: "ft/s^2"},
		{Name: "ACCELERATION_BODY_Z", Kind: KindFloat, Unit: "ft/s^2"},

		{Name: "ROTATION_VELOCITY_BODY_X", Kind: KindFloat, Unit: "rad/s"},
		{Name: "ROTATION_VELOCITY_BODY_Y", Kind: KindFloat, Unit: "rad/s"},
		{Name: "ROTATION_VELOCITY_BODY_Z", Kind: KindFloat, Unit: "rad/s"},

		{Name: "PLANE_PITCH_DEGREES", Kind: KindFloat, Unit: "deg"},
		{Name: "PLANE_BANK_DEGREES", Kind: KindFloat, Unit: "deg"},
		{Name: "PLANE_HEADING_DEGREES_TRUE", Kind: KindFloat, Unit: "deg"},
		{Name: "PLANE_ALTITUDE", Kind: KindFloat, Unit: "ft"},
		{Name: "PLANE_ALT_ABOVE_GROUND", Kind: KindFloat, Unit: "ft"},

		{Name: "AIRSPEED_INDICATED", Kind: KindFloat, Unit: "kt"},
		{Name: "AIRSPEED_TRUE", Kind: KindFloat, Unit: "kt"},
		{Name: "GROUND_VELOCITY", Kind: KindFloat, Unit: "kt"},
		{Name: "VERTICAL_SPEED", Kind: KindFloat, Unit: "ft/min"},
		{Name: "G_FORCE", Kind: KindFloat, Default: 1, Unit: "g"},

		{Name: "GENERAL_ENG_RPM_1", Kind: KindFloat, Unit: "rpm"},
		{Name: "GENERAL_ENG_THROTTLE_LEVER_POSITION_1", Kind: KindFloat, Unit: "%"},

		{Name: "FLAPS_HANDLE_INDEX", Kind: KindInt},
		{Name: "GEAR_HANDLE_POSITION", Kind: KindBool},
		{Name: "SIM_ON_GROUND", Kind: KindBool},
		{Name: "STALL_WARNING", Kind: KindBool},
		{Name: "ENG_COMBUSTION_1", Kind: KindBool},
	}
}
