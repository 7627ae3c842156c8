package backlog

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemoryStore_TotalStoryPoints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")

	childID, err := store.CreateBacklog(ctx, &Backlog{ParentID: root.ID, Name: "Child", Level: 2})
	if err != nil {
		t.Fatalf("CreateBacklog failed: %v", err)
	}
	for _, pts := range []float64{3, 5} {
		if _, err := store.CreateStory(ctx, &Story{BacklogID: childID, Name: "s", EstimatedStoryPoints: pts}); err != nil {
			t.Fatalf("CreateStory failed: %v", err)
		}
	}
	if _, err := store.CreateStory(ctx, &Story{BacklogID: root.ID, Name: "top", EstimatedStoryPoints: 2}); err != nil {
		t.Fatalf("CreateStory failed: %v", err)
	}

	total, err := store.TotalStoryPoints(root.ID)
	if err != nil {
		t.Fatalf("TotalStoryPoints failed: %v", err)
	}
	if total != 10 {
		t.Errorf("Expected 10 points, got %v", total)
	}

	if _, err := store.TotalStoryPoints("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_RejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.CreateBacklog(ctx, &Backlog{ParentID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateBacklog: expected ErrNotFound, got %v", err)
	}
	if _, err := store.CreateStory(ctx, &Story{BacklogID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateStory: expected ErrNotFound, got %v", err)
	}

	root := store.AddProject("p", "Root")
	if _, err := store.CreateTask(ctx, &Task{BacklogID: root.ID, StoryID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("CreateTask: expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_CreateStoresCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")

	story := &Story{BacklogID: root.ID, Name: "Checkout"}
	storyID, err := store.CreateStory(ctx, story)
	if err != nil {
		t.Fatalf("CreateStory failed: %v", err)
	}
	if story.ID != "" {
		t.Errorf("CreateStory modified its argument: ID = %q", story.ID)
	}
	story.Name = "Changed"

	task := &Task{BacklogID: root.ID, StoryID: storyID, Name: "Form"}
	taskID, err := store.CreateTask(ctx, task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if taskID == storyID {
		t.Errorf("Expected distinct IDs, both are %q", taskID)
	}

	stories := store.Stories(root.ID)
	if len(stories) != 1 || stories[0].Name != "Checkout" || stories[0].ID != storyID {
		t.Fatalf("Stories(%s) = %+v, want one story Checkout/%s", root.ID, stories, storyID)
	}
	tasks := store.Tasks(root.ID, storyID)
	if len(tasks) != 1 || tasks[0].ID != taskID {
		t.Errorf("Tasks(%s, %s) = %+v, want one task %s", root.ID, storyID, tasks, taskID)
	}
}

func TestMemoryStore_ListingOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")

	for _, s := range []struct {
		name     string
		priority int
	}{{"c", 30}, {"a", 10}, {"b1", 20}, {"b2", 20}} {
		if _, err := store.CreateStory(ctx, &Story{BacklogID: root.ID, Name: s.name, Priority: s.priority}); err != nil {
			t.Fatalf("CreateStory failed: %v", err)
		}
	}

	var got []string
	for _, s := range store.Stories(root.ID) {
		got = append(got, s.Name)
	}
	want := []string{"a", "b1", "b2", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Stories order = %v, want %v", got, want)
		}
	}
}

func TestMemoryStore_WithinTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")

	err := store.WithinTx(ctx, func(s Store) error {
		_, err := s.CreateStory(ctx, &Story{BacklogID: root.ID, Name: "kept"})
		return err
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}
	if len(store.Stories(root.ID)) != 1 {
		t.Error("Expected committed story")
	}
}

func TestMemoryStore_ReturnedRecordsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")
	root.Name = "mutated"

	got, err := store.GetBacklog(context.Background(), root.ID)
	if err != nil {
		t.Fatalf("GetBacklog failed: %v", err)
	}
	if got.Name != "Root" {
		t.Errorf("Expected stored name to be unchanged, got %q", got.Name)
	}
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := store.AddProject("p", "Root")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTx(ctx, func(s Store) error {
				_, err := s.CreateStory(ctx, &Story{BacklogID: root.ID, Name: "s"})
				return err
			})
		}()
	}
	wg.Wait()

	if _, s, _ := store.Counts(); s != 20 {
		t.Errorf("Expected 20 stories, got %d", s)
	}
}
