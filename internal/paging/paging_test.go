package paging

import "testing"

func TestFormatMiddlePage(t *testing.T) {
	env := Format("https://api.example.com/tasks", 10, 2, 45, "&status=1,2")
	if env.Total != 45 || env.Page != 2 || env.NumberOfPages != 5 {
		t.Fatalf("geometry: %+v", env)
	}
	if env.Links.Self != "https://api.example.com/tasks?page=2&limit=10&status=1,2" {
		t.Fatalf("self: %q", env.Links.Self)
	}
	if env.Links.Prev != "https://api.example.com/tasks?page=1&limit=10&status=1,2" {
		t.Fatalf("prev: %q", env.Links.Prev)
	}
	if env.Links.Next != "https://api.example.com/tasks?page=3&limit=10&status=1,2" {
		t.Fatalf("next: %q", env.Links.Next)
	}
	if env.Links.Last != "https://api.example.com/tasks?page=5&limit=10&status=1,2" {
		t.Fatalf("last: %q", env.Links.Last)
	}
}

func TestFormatEdges(t *testing.T) {
	first := Format("/tasks", 10, 1, 45, "")
	if first.Links.Prev != "" || first.Links.First != "" {
		t.Fatalf("first page has no backward links: %+v", first.Links)
	}
	last := Format("/tasks", 10, 5, 45, "")
	if last.Links.Next != "" || last.Links.Last != "" {
		t.Fatalf("last page has no forward links: %+v", last.Links)
	}
}

func TestFormatEmptyResult(t *testing.T) {
	env := Format("/tasks", 20, 1, 0, "")
	if env.NumberOfPages != 1 || env.Total != 0 {
		t.Fatalf("empty listing still has one page: %+v", env)
	}
	if env.Links.Self != "/tasks?page=1&limit=20" {
		t.Fatalf("self: %q", env.Links.Self)
	}
}

func TestFormatDefensiveGeometry(t *testing.T) {
	env := Format("/tasks", 0, 0, 3, "")
	if env.Page != 1 || env.NumberOfPages != 3 {
		t.Fatalf("zero limit/page must normalize: %+v", env)
	}
}
