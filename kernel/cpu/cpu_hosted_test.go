//go:build !baremetal

package cpu

import "testing"

func TestHostedHalt(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected Halt to panic when running hosted")
		}
	}()

	Halt()
}
