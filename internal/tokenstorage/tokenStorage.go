package tokenstorage

import "sync"

var (
	mu     sync.RWMutex
	tokens = make(map[string]struct{})
)

func AddToken(tokenArg string) {
	mu.Lock()
	tokens[tokenArg] = struct{}{}
	mu.Unlock()
}

func CheckToken(tokenArg string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := tokens[tokenArg]
	return ok
}

// RevokeToken forgets tokenArg; later checks fail even before it expires.
func RevokeToken(tokenArg string) {
	mu.Lock()
	delete(tokens, tokenArg)
	mu.Unlock()
}
