package record

// Area is a top-level classification such as "work" or "study".
type Area struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

// Context describes where or how a record happens.
type Context struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Type distinguishes events, tasks, reminders and similar kinds.
type Type struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Config is the taxonomy that records are classified against.
type Config struct {
	Areas    []Area    `json:"areas" yaml:"areas"`
	Contexts []Context `json:"contexts" yaml:"contexts"`
	Types    []Type    `json:"types" yaml:"types"`
}

// DefaultConfig returns the taxonomy used before anything is persisted.
func DefaultConfig() Config {
	return Config{
		Areas: []Area{
			{ID: "personal", Name: "Personal", Color: "#4caf50"},
			{ID: "work", Name: "Work", Color: "#2196f3"},
			{ID: "study", Name: "Study", Color: "#ff9800"},
		},
		Contexts: []Context{
			{ID: "home", Name: "Home"},
			{ID: "office", Name: "Office"},
			{ID: "online", Name: "Online"},
		},
		Types: []Type{
			{ID: "event", Name: "Event"},
			{ID: "task", Name: "Task"},
			{ID: "reminder", Name: "Reminder"},
		},
	}
}

// Clone returns a copy whose slices can be modified independently.
func (c Config) Clone() Config {
	return Config{
		Areas:    append([]Area(nil), c.Areas...),
		Contexts: append([]Context(nil), c.Contexts...),
		Types:    append([]Type(nil), c.Types...),
	}
}

// HasArea reports whether id names a configured area.
func (c Config) HasArea(id string) bool {
	for _, a := range c.Areas {
		if a.ID == id {
			return true
		}
	}
	return false
}

// HasContext reports whether id names a configured context.
func (c Config) HasContext(id string) bool {
	for _, ctx := range c.Contexts {
		if ctx.ID == id {
			return true
		}
	}
	return false
}

// HasType reports whether id names a configured type.
func (c Config) HasType(id string) bool {
	for _, t := range c.Types {
		if t.ID == id {
			return true
		}
	}
	return false
}
