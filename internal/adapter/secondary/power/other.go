//go:build !linux

package power

import "pa-alarm/internal/domain"

// Default returns Noop; wake locks are only wired for logind.
func Default(string) domain.PowerManager {
	return Noop{}
}
