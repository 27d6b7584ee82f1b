package cothread

// resetFamily clears the calling goroutine's family membership so a test
// gets a fresh synthetic wrapper instead of inheriting one left behind by
// an earlier test on the same goroutine (Go runs a package's tests
// sequentially on one goroutine unless they call t.Parallel(), and a
// family, once created for a goroutine, is never torn down on its own;
// this is the synthetic wrapper's documented leak).
func resetFamily() {
	familyStore.Clear()
}
