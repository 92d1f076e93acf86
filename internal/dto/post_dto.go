package dto

type CreatePostRequest struct {
	// AuthorID, when sent, must equal the authenticated principal; a
	// mismatch is a hard authorization error, never a silent correction.
	AuthorID string   `json:"author_id"`
	Content  string   `json:"content"`
	ImageURL string   `json:"image_url"`
	Tags     []string `json:"tags"`
	Mentions []string `json:"mentions"`
	// ClientToken is an optimistic correlation token echoed back unchanged
	// in the broadcast payload so the sender can reconcile its placeholder.
	ClientToken string `json:"client_token"`
}

type UpdatePostRequest struct {
	Content  *string   `json:"content"`
	ImageURL *string   `json:"image_url"`
	Tags     *[]string `json:"tags"`
	Mentions *[]string `json:"mentions"`
}

type ReactRequest struct {
	Label string `json:"label"`
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

type UpdateCommentRequest struct {
	Content string `json:"content"`
}
