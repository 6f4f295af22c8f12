package permissions

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Capability is a bitset of page level rights.
type Capability uint16

const (
	CanView Capability = 1 << iota
	CanAdd
	CanChange
	CanDelete
	CanPublish
	CanMove
	CanChangeAdvancedSettings
	CanChangePermissions
)

// All grants every capability.
const All = CanView | CanAdd | CanChange | CanDelete | CanPublish | CanMove | CanChangeAdvancedSettings | CanChangePermissions

// DefaultPageGrant is what a new page grant carries unless told otherwise.
const DefaultPageGrant = CanView | CanAdd | CanChange | CanDelete | CanPublish | CanMove

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CanView, "view"},
	{CanAdd, "add"},
	{CanChange, "change"},
	{CanDelete, "delete"},
	{CanPublish, "publish"},
	{CanMove, "move"},
	{CanChangeAdvancedSettings, "change_advanced_settings"},
	{CanChangePermissions, "change_permissions"},
}

// Has reports whether every bit of want is set.
func (c Capability) Has(want Capability) bool {
	return want != 0 && c&want == want
}

// Names lists the capability names set in c.
func (c Capability) Names() []string {
	out := make([]string, 0, len(capabilityNames))
	for _, entry := range capabilityNames {
		if c&entry.cap != 0 {
			out = append(out, entry.name)
		}
	}
	return out
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	return strings.Join(c.Names(), "|")
}

func (c Capability) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Names())
}

func (c *Capability) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		var raw uint16
		if errRaw := json.Unmarshal(data, &raw); errRaw != nil {
			return err
		}
		*c = Capability(raw)
		return nil
	}
	parsed, err := ParseCapabilities(names...)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCapabilities converts capability names into a bitset.
func ParseCapabilities(names ...string) (Capability, error) {
	var out Capability
	for _, name := range names {
		name = normalize(name)
		if name == "" {
			continue
		}
		if name == "all" {
			out |= All
			continue
		}
		found := false
		for _, entry := range capabilityNames {
			if entry.name == name {
				out |= entry.cap
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("permissions: unknown capability %q", name)
		}
	}
	return out, nil
}

// ModelPermission is the model level token a staff user needs in addition
// to a page grant for the capability.
func (c Capability) ModelPermission() string {
	switch c {
	case CanView:
		return PagesRead
	case CanAdd:
		return PagesCreate
	case CanDelete:
		return PagesDelete
	case CanChangePermissions:
		return PagePermissionsUpdate
	default:
		return PagesUpdate
	}
}

// GrantOn controls which pages relative to the granted page a grant covers.
type GrantOn string

const (
	GrantOnPage               GrantOn = "page"
	GrantOnChildren           GrantOn = "children"
	GrantOnDescendants        GrantOn = "descendants"
	GrantOnPageAndChildren    GrantOn = "page_and_children"
	GrantOnPageAndDescendants GrantOn = "page_and_descendants"
)

// Covers reports whether a grant applies at depth levels below the granted
// page. Depth zero is the page itself.
func (g GrantOn) Covers(depth int) bool {
	switch g {
	case GrantOnPage:
		return depth == 0
	case GrantOnChildren:
		return depth == 1
	case GrantOnDescendants:
		return depth >= 1
	case GrantOnPageAndChildren:
		return depth == 0 || depth == 1
	case GrantOnPageAndDescendants, "":
		return depth >= 0
	default:
		return false
	}
}

// Valid reports whether g is a known scope.
func (g GrantOn) Valid() bool {
	switch g {
	case GrantOnPage, GrantOnChildren, GrantOnDescendants, GrantOnPageAndChildren, GrantOnPageAndDescendants:
		return true
	default:
		return false
	}
}

// Value stores the bitset as an integer column.
func (c Capability) Value() (driver.Value, error) {
	return int64(c), nil
}

// Scan reads the bitset from an integer column.
func (c *Capability) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = 0
	case int64:
		*c = Capability(v)
	case []byte:
		n, err := strconv.ParseUint(string(v), 10, 16)
		if err != nil {
			return err
		}
		*c = Capability(n)
	case string:
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return err
		}
		*c = Capability(n)
	default:
		return fmt.Errorf("permissions: cannot scan %T into Capability", src)
	}
	return nil
}
