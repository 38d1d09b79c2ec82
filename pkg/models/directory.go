package models

// User is a directory entry a policy can notify directly. The login doubles
// as the email address, as in the fleet inventory.
type User struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// Group is a named set of users a policy can notify collectively
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	UserIDs []string `json:"userIds"`
}
