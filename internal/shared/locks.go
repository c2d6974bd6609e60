package shared

import "fmt"

// OwnerLockKey builds redis keys for per-owner critical sections. Batch
// matching and detector runs for different owners never contend.
func OwnerLockKey(ownerID int64) string {
	return fmt.Sprintf("finbook:owner:%d:lock", ownerID)
}
