package memory

import "sync"

// Session cache keys written after every successful pipeline run.
const (
	KeyLastPrompt         = "last_prompt"
	KeyLastEnhancedPrompt = "last_enhanced_prompt"
	KeyLastImagePath      = "last_image_path"
	KeyLastModelPath      = "last_model_path"
)

// SessionCache is the process-lifetime last-result cache. Entries are scoped
// per session id so concurrent users never read each other's fields. Values
// are overwritten on every successful run and lost on process restart.
type SessionCache struct {
	mu       sync.RWMutex
	sessions map[string]map[string]string
}

func NewSessionCache() *SessionCache {
	return &SessionCache{sessions: make(map[string]map[string]string)}
}

// Put stores a value under the given session and key.
func (c *SessionCache) Put(sessionID, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		session = make(map[string]string)
		c.sessions[sessionID] = session
	}
	session[key] = value
}

// Get returns the value stored under the given session and key.
func (c *SessionCache) Get(sessionID, key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	session, ok := c.sessions[sessionID]
	if !ok {
		return "", false
	}
	value, ok := session[key]
	return value, ok
}
