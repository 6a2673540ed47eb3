package models

import "time"

// ParentType names what a post hangs off. Only user feeds are written today.
type ParentType string

const (
	ParentUser  ParentType = "user"
	ParentGroup ParentType = "group"
	ParentPost  ParentType = "post"
)

// PostParent points a post at the feed or thread it belongs to.
type PostParent struct {
	ID   string     `json:"parent_id" bson:"parent_id"`
	Type ParentType `json:"parent_type" bson:"parent_type"`
}

// PostAttachment is one stored file of a post. PublicID is the blob key.
type PostAttachment struct {
	DownloadLink string `json:"download_link" bson:"download_link"`
	PublicID     string `json:"public_id" bson:"public_id"`
}

// Post is a message published to a feed.
type Post struct {
	ID          string           `json:"id" bson:"_id"`
	PosterID    string           `json:"poster_id" bson:"poster_id"`
	Content     string           `json:"content" bson:"content"`
	Attachments []PostAttachment `json:"attachments" bson:"attachments"`
	UploadDate  time.Time        `json:"upload_date" bson:"upload_date"`
	Likes       int              `json:"likes" bson:"likes"`
	Parent      PostParent       `json:"parent" bson:"parent"`
}
