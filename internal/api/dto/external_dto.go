package dto

// SyncExternalUsersRequest selects directory entries to import.
type SyncExternalUsersRequest struct {
	IDs []int `json:"ids" validate:"required,min=1,max=100,dive,gt=0"`
}
