package constants

import "fmt"

// Redis keys. Pattern: eventreg:{module}:{operation}:{identifier}:{params?}

const (
	CACHE_PREFIX = "eventreg"

	CACHE_KEY_AVAILABILITY_CAPACITY = CACHE_PREFIX + ":availability:capacity:" // + event-id
	CACHE_KEY_AVAILABILITY_OPTIONS  = CACHE_PREFIX + ":availability:options:"  // + event-id:audience

	RATE_LIMIT_KEY_FORMAT = CACHE_PREFIX + ":ratelimit:%s:%s" // type, identifier
)

func CapacityCacheKey(eventID string) string {
	return CACHE_KEY_AVAILABILITY_CAPACITY + eventID
}

func TicketOptionsCacheKey(eventID, audience string) string {
	if audience == "" {
		audience = "_"
	}
	return fmt.Sprintf("%s%s:%s", CACHE_KEY_AVAILABILITY_OPTIONS, eventID, audience)
}

// TicketOptionsCachePattern matches every audience variant of an event's options
func TicketOptionsCachePattern(eventID string) string {
	return CACHE_KEY_AVAILABILITY_OPTIONS + eventID + ":*"
}
