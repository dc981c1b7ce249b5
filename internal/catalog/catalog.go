// Package catalog describes the backend collections the console knows about
// and the fixed route table that binds each view to one collection.
package catalog

import (
	"strings"
)

type FieldKind int

const (
	KindText FieldKind = iota
	KindInt
)

// Field is one input of an insert form.
type Field struct {
	Name     string
	Label    string
	Kind     FieldKind
	Required bool
}

// Column is one displayed table column.
type Column struct {
	Field string
	Title string
	Width int
}

type Collection struct {
	Name         string
	Select       string
	OrderBy      string
	Ascending    bool
	SearchFields []string
	Columns      []Column
	InsertFields []Field
	// EditField is the primary text field an operator may rewrite in place.
	// Empty means the view is read-only apart from delete.
	EditField string
	EditLabel string
	Deletable bool
	Noun      string
}

func (c Collection) Insertable() bool { return len(c.InsertFields) > 0 }
func (c Collection) Editable() bool   { return c.EditField != "" }

func (c Collection) RequiredFields() []string {
	out := make([]string, 0, len(c.InsertFields))
	for _, f := range c.InsertFields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func (c Collection) SelectColumns() string {
	if strings.TrimSpace(c.Select) == "" {
		return "*"
	}
	return c.Select
}

type Route struct {
	Path       string
	Label      string
	Collection Collection
}

const (
	Users          = "users"
	Messages       = "messages"
	Likes          = "likes"
	Comments       = "comments"
	Reels          = "reels"
	Profiles       = "profiles"
	SearchProfiles = "search_profiles"
	UserFavs       = "user_favs"
	Admins         = "admins"
)

const (
	PathDashboard = "/"
	PathLogin     = "/login"
)

// DashboardTables are counted, in this order, on the dashboard.
var DashboardTables = []string{
	Users,
	Messages,
	Likes,
	Comments,
	Reels,
	Profiles,
	SearchProfiles,
	UserFavs,
}

var usersCollection = Collection{
	Name:         Users,
	OrderBy:      "created_at",
	Ascending:    false,
	SearchFields: []string{"username", "email", "city", "country", "number"},
	Columns: []Column{
		{Field: "username", Title: "Username", Width: 16},
		{Field: "email", Title: "Email", Width: 24},
		{Field: "age", Title: "Age", Width: 4},
		{Field: "city", Title: "City", Width: 12},
		{Field: "country", Title: "Country", Width: 12},
		{Field: "number", Title: "Phone", Width: 14},
		{Field: "verification_status", Title: "Verified", Width: 9},
	},
	InsertFields: []Field{
		{Name: "username", Label: "Username", Kind: KindText, Required: true},
		{Name: "email", Label: "Email", Required: true},
		{Name: "age", Label: "Age", Kind: KindInt},
		{Name: "city", Label: "City", Kind: KindText},
		{Name: "country", Label: "Country", Kind: KindText},
		{Name: "number", Label: "Phone", Kind: KindText},
	},
	Deletable: true,
	Noun:      "user",
}

var commentColumns = []Column{
	{Field: "user_id", Title: "User ID", Width: 14},
	{Field: "reel_id", Title: "Reel ID", Width: 14},
	{Field: "comment_text", Title: "Comment", Width: 40},
	{Field: "created_at", Title: "Created At", Width: 17},
}

var routes = []Route{
	{Path: "/users", Label: "Users", Collection: usersCollection},
	{Path: "/chats", Label: "Chats", Collection: Collection{
		Name:         Messages,
		OrderBy:      "created_at",
		Ascending:    true,
		SearchFields: []string{"username", "text", "user_id"},
		Columns: []Column{
			{Field: "username", Title: "User", Width: 16},
			{Field: "text", Title: "Message", Width: 44},
			{Field: "created_at", Title: "Sent", Width: 17},
		},
		Deletable: true,
		Noun:      "message",
	}},
	{Path: "/matches", Label: "Likes", Collection: Collection{
		Name:         Likes,
		OrderBy:      "created_at",
		Ascending:    true,
		SearchFields: []string{"user_id", "target_id", "liked_user_id"},
		Columns: []Column{
			{Field: "user_id", Title: "User ID", Width: 20},
			{Field: "target_id", Title: "Target ID", Width: 20},
			{Field: "created_at", Title: "Liked At", Width: 17},
		},
		Noun: "like",
	}},
	{Path: "/comments", Label: "Comments", Collection: Collection{
		Name:         Comments,
		Select:       "id,created_at,user_id,reel_id,comment_text",
		OrderBy:      "created_at",
		Ascending:    true,
		SearchFields: []string{"comment_text", "user_id", "reel_id"},
		Columns:      commentColumns,
		Noun:         "comment",
	}},
	{Path: "/reels", Label: "Reels", Collection: Collection{
		Name:         Comments,
		Select:       "id,created_at,user_id,reel_id,comment_text",
		OrderBy:      "created_at",
		Ascending:    true,
		SearchFields: []string{"comment_text", "user_id", "reel_id"},
		Columns:      commentColumns,
		EditField:    "comment_text",
		EditLabel:    "Comment",
		Deletable:    true,
		Noun:         "comment",
	}},
	{Path: "/profiles", Label: "Profiles", Collection: Collection{
		Name:         Profiles,
		OrderBy:      "username",
		Ascending:    true,
		SearchFields: []string{"username", "bio"},
		Columns: []Column{
			{Field: "username", Title: "Username", Width: 18},
			{Field: "bio", Title: "Bio", Width: 50},
		},
		Noun: "profile",
	}},
	{Path: "/search-profiles", Label: "Search Profiles", Collection: Collection{
		Name:         SearchProfiles,
		Select:       "id,username,bio,image_url,is_verified",
		OrderBy:      "username",
		Ascending:    true,
		SearchFields: []string{"username", "bio"},
		Columns: []Column{
			{Field: "username", Title: "Username", Width: 18},
			{Field: "is_verified", Title: "Verified", Width: 9},
			{Field: "bio", Title: "Bio", Width: 44},
		},
		Noun: "search profile",
	}},
	{Path: "/user-favs", Label: "Favorites", Collection: Collection{
		Name:         UserFavs,
		OrderBy:      "created_at",
		Ascending:    false,
		SearchFields: []string{"user_id", "target_id"},
		Columns: []Column{
			{Field: "user_id", Title: "User ID", Width: 22},
			{Field: "target_id", Title: "Target ID", Width: 22},
			{Field: "created_at", Title: "Added", Width: 17},
		},
		Noun: "favorite",
	}},
}

// Routes returns the route table in sidebar order.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Lookup resolves a route path ("/chats"), a bare path ("chats") or a
// collection name ("messages") to a route. Paths win over collection names so
// "comments" resolves to the read-only comments view, not the moderation one.
func Lookup(name string) (Route, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Route{}, false
	}
	path := name
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.ReplaceAll(path, "_", "-")
	for _, r := range routes {
		if r.Path == path {
			return r, true
		}
	}
	for _, r := range routes {
		if r.Collection.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Known reports whether name is a collection the backend exposes.
func Known(name string) bool {
	if name == Admins {
		return true
	}
	for _, t := range DashboardTables {
		if t == name {
			return true
		}
	}
	return false
}

// RouteFor returns the view path the dashboard links a table's card to.
func RouteFor(table string) string {
	switch table {
	case Users:
		return "/users"
	case Messages:
		return "/chats"
	case Likes:
		return "/matches"
	case Comments:
		return "/comments"
	case Reels:
		return "/reels"
	case Profiles:
		return "/profiles"
	case SearchProfiles:
		return "/search-profiles"
	case UserFavs:
		return "/user-favs"
	default:
		return PathDashboard
	}
}

// Title turns a table name into the label shown on dashboard cards.
func Title(table string) string {
	return strings.ReplaceAll(table, "_", " ")
}
