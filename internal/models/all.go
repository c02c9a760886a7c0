package models

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Post{},
		&Comment{},
		&Reaction{},
		&Announcement{},
		&Album{},
		&AlbumImage{},
		&Inquiry{},
		&Notification{},
	}
}
