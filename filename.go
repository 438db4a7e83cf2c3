package mailmerge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// unsafeNameRe matches every rune outside word characters, '-', '_' and '.'.
// Word characters are letters and digits of any script.  Combining marks are
// not, so a decomposed accent is dropped while its base letter is kept.
var unsafeNameRe = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)

// SanitizeFilename turns a row value into a filesystem-safe base name: spaces
// become underscores, then every other unsafe rune is dropped.  No extension
// is added.  The result may be empty.
func SanitizeFilename(value string) string {
	name := strings.ReplaceAll(value, " ", "_")
	return unsafeNameRe.ReplaceAllString(name, "")
}

// Collision selects how a Namer treats two rows deriving the same name.
type Collision int

const (
	// CollisionSuffix keeps the first name and appends _2, _3, ... to later ones.
	CollisionSuffix Collision = iota
	// CollisionOverwrite reuses the name; the last row written wins.
	CollisionOverwrite
)

func (c Collision) String() string {
	switch c {
	case CollisionSuffix:
		return "suffix"
	case CollisionOverwrite:
		return "overwrite"
	default:
		return "Collision(" + strconv.Itoa(int(c)) + ")"
	}
}

// ParseCollision parses the String form of a Collision.
func ParseCollision(s string) (Collision, error) {
	switch strings.ToLower(s) {
	case "", "suffix":
		return CollisionSuffix, nil
	case "overwrite":
		return CollisionOverwrite, nil
	}
	return 0, fmt.Errorf("unknown collision policy %q", s)
}

// Name is the outcome of naming one row.
type Name struct {
	Base     string // final base name, without extension
	Fallback bool   // the row value sanitized to "" and a row_<n> name was used
	Renamed  bool   // a suffix was added to avoid a collision
	Reused   bool   // the name was already claimed and will be overwritten
}

// Namer assigns base names to rows in order.  It is not safe for concurrent
// use; name rows before fanning out work.
type Namer struct {
	policy Collision
	taken  map[string]string // lower-cased name -> name as first claimed
}

// NewNamer returns a Namer using the given collision policy.
func NewNamer(policy Collision) *Namer {
	return &Namer{policy: policy, taken: make(map[string]string)}
}

// Next derives the name for the row numbered rowNum whose filename column holds
// value.
func (n *Namer) Next(rowNum int, value string) Name {
	var out Name
	base := SanitizeFilename(value)
	if base == "" {
		base = "row_" + strconv.Itoa(rowNum)
		out.Fallback = true
	}

	if prev, ok := n.claimed(base); ok {
		if n.policy == CollisionOverwrite {
			out.Base = prev
			out.Reused = true
			return out
		}
		for i := 2; ; i++ {
			candidate := base + "_" + strconv.Itoa(i)
			if _, ok := n.claimed(candidate); !ok {
				base = candidate
				out.Renamed = true
				break
			}
		}
	}

	n.claim(base)
	out.Base = base
	return out
}

// Names are compared case-insensitively so case-folding filesystems do not
// silently merge two outputs.
func (n *Namer) claimed(base string) (string, bool) {
	prev, ok := n.taken[strings.ToLower(base)]
	return prev, ok
}

func (n *Namer) claim(base string) {
	n.taken[strings.ToLower(base)] = base
}
