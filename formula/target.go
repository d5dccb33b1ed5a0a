package formula

// Destination tells where a target installs.
type Destination int

const (
	// DestinationDeps installs into deps/<name>, shared with later builds
	// through the prefix.
	DestinationDeps Destination = iota
	// DestinationOutput installs into the output directory; such targets
	// are code-signed after the build.
	DestinationOutput
)

func (d Destination) String() string {
	if d == DestinationOutput {
		return "output"
	}
	return "deps"
}

// Target is a buildable recipe.
type Target interface {
	Name() string
	Destination() Destination
	// MultiPlatform reports whether the target is built once per
	// architecture and merged into a universal tree.
	MultiPlatform() bool
	UnsupportedArchs() []string
	// Outputs lists install-relative paths to code-sign.
	Outputs() []string

	// Detect reports whether the source tree in c belongs to this target.
	Detect(c *Context) bool
	Initialize(c *Context) error
	PrepareSource(c *Context) error
	Configure(c *Context) error
	Build(c *Context) error
	PostBuild(c *Context) error
}

// BaseTarget provides no-op defaults for Target. Recipes embed it and
// override what they need.
type BaseTarget struct {
	TargetName     string
	Dest           Destination
	SinglePlatform bool
	Unsupported    []string
	OutputFiles    []string
}

func (t *BaseTarget) Name() string               { return t.TargetName }
func (t *BaseTarget) Destination() Destination   { return t.Dest }
func (t *BaseTarget) MultiPlatform() bool        { return !t.SinglePlatform }
func (t *BaseTarget) UnsupportedArchs() []string { return t.Unsupported }
func (t *BaseTarget) Outputs() []string          { return t.OutputFiles }

func (t *BaseTarget) Detect(c *Context) bool         { return false }
func (t *BaseTarget) Initialize(c *Context) error    { return nil }
func (t *BaseTarget) PrepareSource(c *Context) error { return nil }
func (t *BaseTarget) Configure(c *Context) error     { return nil }
func (t *BaseTarget) Build(c *Context) error         { return nil }
func (t *BaseTarget) PostBuild(c *Context) error     { return nil }
