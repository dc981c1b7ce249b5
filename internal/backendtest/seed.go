package backendtest

import (
	"fmt"
	"time"

	"swipedesk/internal/record"
)

const (
	DemoAdminEmail    = "admin@swipedesk.dev"
	DemoAdminPassword = "swipedesk"
)

var demoPeople = []struct {
	username, city, country string
	age                     int
}{
	{"ava_m", "Lisbon", "Portugal", 27},
	{"bruno.k", "Porto", "Portugal", 31},
	{"chloe", "Lyon", "France", 24},
	{"dmitri", "Riga", "Latvia", 35},
	{"elena_r", "Madrid", "Spain", 29},
	{"farah", "Amman", "Jordan", 26},
	{"gus", "Austin", "USA", 33},
	{"hana", "Osaka", "Japan", 22},
	{"ivo", "Zagreb", "Croatia", 38},
	{"june", "Seoul", "South Korea", 25},
	{"kofi", "Accra", "Ghana", 30},
	{"lena", "Berlin", "Germany", 28},
}

var demoLines = []string{
	"hey! loved your last reel",
	"coffee this weekend?",
	"haha same",
	"where was that photo taken?",
	"sounds good, see you then",
	"that trail looks amazing",
}

// SeedDemo fills every table with a small, plausible data set spread over
// the week before now and registers the demo admin account.
func (s *Server) SeedDemo(now time.Time) {
	s.AddUser(DemoAdminEmail, DemoAdminPassword)
	s.Seed("admins", record.Row{"id": "admin-1", "email": DemoAdminEmail, "created_at": stamp(now.AddDate(0, -2, 0))})

	at := func(i int) string {
		return stamp(now.Add(-time.Duration(i*13+5) * time.Hour))
	}

	for i, p := range demoPeople {
		id := fmt.Sprintf("u%02d", i+1)
		status := "pending"
		if i%3 != 0 {
			status = "verified"
		}
		s.Seed("users", record.Row{
			"id":                  id,
			"created_at":          at(i),
			"username":            p.username,
			"email":               p.username + "@example.com",
			"age":                 p.age,
			"city":                p.city,
			"country":             p.country,
			"number":              fmt.Sprintf("+1555010%04d", i*7),
			"verification_status": status,
		})
		s.Seed("profiles", record.Row{
			"id":         "p" + id,
			"created_at": at(i),
			"username":   p.username,
			"bio":        fmt.Sprintf("%d, %s. Looking for someone to explore %s with.", p.age, p.city, p.country),
		})
		s.Seed("search_profiles", record.Row{
			"id":          "sp" + id,
			"created_at":  at(i),
			"username":    p.username,
			"bio":         "Based in " + p.city,
			"image_url":   "https://cdn.example.com/avatars/" + id + ".jpg",
			"is_verified": status == "verified",
		})
	}

	n := len(demoPeople)
	for i := 0; i < 18; i++ {
		from := i % n
		s.Seed("messages", record.Row{
			"id":         fmt.Sprintf("m%03d", i+1),
			"created_at": at(i % 12),
			"user_id":    fmt.Sprintf("u%02d", from+1),
			"username":   demoPeople[from].username,
			"text":       demoLines[i%len(demoLines)],
		})
	}
	for i := 0; i < 15; i++ {
		s.Seed("likes", record.Row{
			"id":         fmt.Sprintf("l%03d", i+1),
			"created_at": at(i % 11),
			"user_id":    fmt.Sprintf("u%02d", i%n+1),
			"target_id":  fmt.Sprintf("u%02d", (i*5+3)%n+1),
		})
	}
	for i := 0; i < 6; i++ {
		s.Seed("reels", record.Row{
			"id":         fmt.Sprintf("r%02d", i+1),
			"created_at": at(i * 2),
			"user_id":    fmt.Sprintf("u%02d", i*2+1),
			"video_url":  fmt.Sprintf("https://cdn.example.com/reels/r%02d.mp4", i+1),
		})
	}
	for i := 0; i < 9; i++ {
		s.Seed("comments", record.Row{
			"id":           fmt.Sprintf("c%03d", i+1),
			"created_at":   at(i),
			"user_id":      fmt.Sprintf("u%02d", (i*3)%n+1),
			"reel_id":      fmt.Sprintf("r%02d", i%6+1),
			"comment_text": demoLines[(i+2)%len(demoLines)],
		})
	}
	for i := 0; i < 7; i++ {
		s.Seed("user_favs", record.Row{
			"id":         fmt.Sprintf("f%02d", i+1),
			"created_at": at(i),
			"user_id":    fmt.Sprintf("u%02d", i+1),
			"target_id":  fmt.Sprintf("u%02d", (i+4)%n+1),
		})
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
