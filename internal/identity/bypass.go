package identity

import "github.com/govtrack/backend/internal/models"

// DevToken is accepted in place of a real token when the bypass is active.
const DevToken = "DEV_TOKEN"

// DevIdentity is the fixed identity granted by the bypass.
var DevIdentity = models.Identity{UID: "dev-user", Email: "dev@example.com"}

// BypassCompiled reports whether this binary was built with the devauth tag.
func BypassCompiled() bool { return bypassCompiled }

// DevBypass grants DevIdentity when the binary carries the devauth build tag,
// the emulator flag is set, and the token is empty or DevToken.
func DevBypass(emulator bool, token string) (models.Identity, bool) {
	if !bypassCompiled || !emulator {
		return models.Identity{}, false
	}
	if token == "" || token == DevToken {
		return DevIdentity, true
	}
	return models.Identity{}, false
}
