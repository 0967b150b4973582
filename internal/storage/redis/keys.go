package redis

import "fmt"

// Key prefix for all poker data
const keyPrefix = "scrumdeal"

// tableKey returns the Redis key for a Table's current state
func tableKey(name string) string {
	return fmt.Sprintf("%s:table:%s", keyPrefix, name)
}

// directoryKey returns the Redis key for the active-table directory hash
func directoryKey() string {
	return fmt.Sprintf("%s:directory", keyPrefix)
}

// roundsKey returns the Redis key for a table's voting round history list
func roundsKey(tableName string) string {
	return fmt.Sprintf("%s:history:%s", keyPrefix, tableName)
}

// roundSeqKey returns the Redis key for a table's round number counter
func roundSeqKey(tableName string) string {
	return fmt.Sprintf("%s:history:%s:seq", keyPrefix, tableName)
}
