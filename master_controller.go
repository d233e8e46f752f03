package master

// MasterController is the generation-independent surface for driving a
// Master. Both the Classic and the Core implement it on top of their own
// command sets.
type MasterController interface {
	// Start launches the controller's background consumers and monitors
	Start() error
	Stop()

	// SubscribeEvent registers a callback for decoded Master events
	SubscribeEvent(callback func(event *MasterEvent))

	// FirmwareVersion reads the Master's firmware version
	FirmwareVersion() (string, error)

	SetOutput(outputID int, on bool) error
	ToggleOutput(outputID int) error
	// GetOutputStatuses returns the cached output states
	GetOutputStatuses() []OutputState
	// RefreshOutputStates reloads the output cache from the hardware
	RefreshOutputStates() error

	ShutterUp(shutterID int) error
	ShutterDown(shutterID int) error
	ShutterStop(shutterID int) error

	// LoadOutput reads the stored configuration of a single output
	LoadOutput(outputID int) (map[string]any, error)

	// EepromReadPage reads one 256-byte memory page. FramReadPage fails on a
	// Classic, which has no FRAM bank.
	EepromReadPage(page int) ([]byte, error)
	FramReadPage(page int) ([]byte, error)
	// InvalidateMemoryCache drops any cached memory pages
	InvalidateMemoryCache()
}

var (
	_ MasterController = (*MasterClassicController)(nil)
	_ MasterController = (*MasterCoreController)(nil)
)
