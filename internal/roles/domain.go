package roles

// Role is a row of the fixed role catalog.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
