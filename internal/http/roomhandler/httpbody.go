package roomhandler

import "chatrelay/internal/store"

type CreateRoomBody struct {
	Name        string   `json:"name"        binding:"required"          example:"general"`
	Description string   `json:"description"                             example:"Team chatter"`
	Type        string   `json:"type"        binding:"omitempty,oneof=group private" example:"group"`
	Members     []string `json:"members"     binding:"required"`
} // @name CreateRoomRequest

type UpdateRoomBody struct {
	Name        string   `json:"name"        binding:"omitempty" example:"general"`
	Description string   `json:"description"                     example:"Team chatter"`
	Members     []string `json:"members"`
} // @name UpdateRoomRequest

type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=0,max=100"`
	Page  int `form:"page"  binding:"omitempty,min=0"`
} // @name HistoryQuery

type HistoryResponse struct {
	Messages      []store.Message `json:"messages"`
	CurrentPage   int             `json:"currentPage"`
	TotalPages    int             `json:"totalPages"`
	TotalMessages int             `json:"totalMessages"`
} // @name HistoryResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
