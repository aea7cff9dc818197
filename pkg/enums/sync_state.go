package enums

import "fmt"

// SyncState reflects how the local collection relates to the durable copy.
type SyncState string

const (
	SyncStateSynced    SyncState = "synced"
	SyncStateSyncing   SyncState = "syncing"
	SyncStateOutOfSync SyncState = "out_of_sync"
)

var validSyncStates = []SyncState{
	SyncStateSynced,
	SyncStateSyncing,
	SyncStateOutOfSync,
}

// String implements fmt.Stringer.
func (s SyncState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SyncState.
func (s SyncState) IsValid() bool {
	for _, candidate := range validSyncStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSyncState converts raw input into a SyncState.
func ParseSyncState(value string) (SyncState, error) {
	for _, candidate := range validSyncStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sync state %q", value)
}
