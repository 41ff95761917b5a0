package ports_test

import (
	"testing"

	mocks "github.com/glhm/console/internal/mocks/auth"
	"github.com/glhm/console/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.DurableStorage = (*mocks.MapStorage)(nil)
	var _ ports.CookieChannel = (*mocks.RecordingCookieChannel)(nil)
	var _ ports.CredentialStore = (*mocks.FakeCredentialStore)(nil)
	var _ ports.Navigator = (*mocks.RecordingNavigator)(nil)
	var _ ports.KeyCache = (*mocks.MemoryKeyCache)(nil)
}
