package store

import (
	"testing"
	"time"

	"github.com/workbib/workbib/internal/work"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCreateWork reconciles the work's authors and persists it.
func mustCreateWork(t *testing.T, s *Store, w *work.Work) *work.Work {
	t.Helper()
	for i, a := range w.Authors {
		resolved, _, err := s.FindOrCreateAuthor(a)
		if err != nil {
			t.Fatalf("FindOrCreateAuthor(%v) error = %v", a, err)
		}
		w.Authors[i] = resolved
	}
	if err := s.CreateWork(w); err != nil {
		t.Fatalf("CreateWork() error = %v", err)
	}
	return w
}

func sampleWork(label, doi string) *work.Work {
	return &work.Work{
		DOI:       doi,
		Label:     label,
		Type:      "article",
		Title:     "Sample Title",
		Published: work.PublicationDate{Year: 2019, Month: 8, Day: 1},
		Source:    work.SourceUserUpload,
		Authors: []work.Author{
			{Given: "Samuel", Family: "Jennings"},
		},
	}
}

func TestCreateAndGetWork(t *testing.T) {
	s := openTestStore(t)
	mustCreateWork(t, s, sampleWork("Jennings2019", "10.1016/j.gca.2019.08.005"))

	got, err := s.GetWorkByDOI("10.1016/j.gca.2019.08.005")
	if err != nil {
		t.Fatalf("GetWorkByDOI() error = %v", err)
	}
	if got.Label != "Jennings2019" {
		t.Errorf("Label = %q, want Jennings2019", got.Label)
	}
	if len(got.Authors) != 1 || got.Authors[0].Family != "Jennings" {
		t.Errorf("Authors = %v", got.Authors)
	}
}

func TestGetWorkByDOI_CaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	mustCreateWork(t, s, sampleWork("Jennings2019", "10.1016/j.gca.2019.08.005"))

	got, err := s.GetWorkByDOI("10.1016/J.GCA.2019.08.005")
	if err != nil {
		t.Fatalf("GetWorkByDOI() with upper case error = %v", err)
	}
	if got.DOI != "10.1016/j.gca.2019.08.005" {
		t.Errorf("stored DOI = %q, want lowercase", got.DOI)
	}
}

func TestCreateWork_DuplicateDOI(t *testing.T) {
	s := openTestStore(t)
	mustCreateWork(t, s, sampleWork("Jennings2019", "10.1/x"))

	dup := sampleWork("Other2019", "10.1/X") // different case, same DOI
	dup.Authors = nil
	err := s.CreateWork(dup)
	if !IsConstraint(err, "doi") {
		t.Errorf("CreateWork() error = %v, want doi constraint violation", err)
	}

	// The failed insert must leave nothing behind
	if ok, _ := s.HasLabel("Other2019"); ok {
		t.Error("partial row persisted after constraint violation")
	}
}

func TestCreateWork_DuplicateLabel(t *testing.T) {
	s := openTestStore(t)
	w := sampleWork("Jennings2019", "10.1/a")
	w.Authors = nil
	mustCreateWork(t, s, w)

	dup := sampleWork("Jennings2019", "10.1/b")
	dup.Authors = nil
	if err := s.CreateWork(dup); !IsConstraint(err, "label") {
		t.Errorf("CreateWork() error = %v, want label constraint violation", err)
	}
}

func TestCreateWork_NoDOIAllowedTwice(t *testing.T) {
	s := openTestStore(t)
	a := sampleWork("A2019", "")
	a.Authors = nil
	b := sampleWork("B2019", "")
	b.Authors = nil

	mustCreateWork(t, s, a)
	// NULL DOIs must not collide with each other
	if err := s.CreateWork(b); err != nil {
		t.Fatalf("CreateWork() with second empty DOI error = %v", err)
	}
}

func TestAuthorPositionsPreserved(t *testing.T) {
	s := openTestStore(t)

	// Pre-create one author so the work mixes existing and new rows
	pre, created, err := s.FindOrCreateAuthor(work.Author{Given: "Derrick", Family: "Hasterok"})
	if err != nil || !created {
		t.Fatalf("FindOrCreateAuthor() = %v, %v", created, err)
	}

	w := sampleWork("Jennings2019", "10.1/order")
	w.Authors = []work.Author{
		{Given: "Samuel", Family: "Jennings"},
		pre,
		{Given: "Jane", Family: "Smith"},
	}
	mustCreateWork(t, s, w)

	got, err := s.GetWorkByLabel("Jennings2019")
	if err != nil {
		t.Fatalf("GetWorkByLabel() error = %v", err)
	}
	families := []string{"Jennings", "Hasterok", "Smith"}
	if len(got.Authors) != len(families) {
		t.Fatalf("got %d authors, want %d", len(got.Authors), len(families))
	}
	for i, family := range families {
		if got.Authors[i].Family != family {
			t.Errorf("position %d = %q, want %q", i, got.Authors[i].Family, family)
		}
	}
}

func TestFindOrCreateAuthor_NoDuplicate(t *testing.T) {
	s := openTestStore(t)

	first, created, err := s.FindOrCreateAuthor(work.Author{Given: "D", Family: "Hasterok", ORCID: "0000-0001"})
	if err != nil {
		t.Fatalf("FindOrCreateAuthor() error = %v", err)
	}
	if !created {
		t.Error("first call should create")
	}

	second, created, err := s.FindOrCreateAuthor(work.Author{Given: "D", Family: "Hasterok", ORCID: "9999-9999"})
	if err != nil {
		t.Fatalf("FindOrCreateAuthor() error = %v", err)
	}
	if created {
		t.Error("second call should find, not create")
	}
	if second.ID != first.ID {
		t.Errorf("ids differ: %d != %d", second.ID, first.ID)
	}
	if second.ORCID != "0000-0001" {
		t.Errorf("existing metadata overwritten: ORCID = %q", second.ORCID)
	}

	if n, _ := s.CountAuthors(); n != 1 {
		t.Errorf("author rows = %d, want 1", n)
	}
}

func TestCountLabelPrefix(t *testing.T) {
	s := openTestStore(t)
	for _, label := range []string{"Smith2020", "Smith2020a", "Smith2021"} {
		w := sampleWork(label, "")
		w.Authors = nil
		mustCreateWork(t, s, w)
	}

	n, err := s.CountLabelPrefix("Smith2020")
	if err != nil {
		t.Fatalf("CountLabelPrefix() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountLabelPrefix(Smith2020) = %d, want 2", n)
	}
}

func TestDeleteWork_CleansOrphans(t *testing.T) {
	s := openTestStore(t)

	shared := work.Author{Given: "Shared", Family: "Author"}

	w1 := sampleWork("One2019", "10.1/one")
	w1.Authors = []work.Author{{Given: "Only", Family: "InOne"}, shared}
	w1.Subjects = []string{"geology", "heat flow"}
	mustCreateWork(t, s, w1)

	w2 := sampleWork("Two2019", "10.1/two")
	w2.Authors = []work.Author{shared}
	w2.Subjects = []string{"geology"}
	mustCreateWork(t, s, w2)

	result, err := s.DeleteWork(w1.ID)
	if err != nil {
		t.Fatalf("DeleteWork() error = %v", err)
	}

	// "Only InOne" is now orphaned; "Shared Author" is still referenced
	if result.AuthorsRemoved != 1 {
		t.Errorf("AuthorsRemoved = %d, want 1", result.AuthorsRemoved)
	}
	// "heat flow" is orphaned; "geology" still referenced by w2
	if result.SubjectsRemoved != 1 {
		t.Errorf("SubjectsRemoved = %d, want 1", result.SubjectsRemoved)
	}

	if _, err := s.GetWorkByLabel("One2019"); err != ErrNotFound {
		t.Errorf("deleted work still retrievable: %v", err)
	}
	if n, _ := s.CountAuthors(); n != 1 {
		t.Errorf("author rows after cleanup = %d, want 1", n)
	}
}

func TestDeleteWork_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.DeleteWork(999); err != ErrNotFound {
		t.Errorf("DeleteWork(999) error = %v, want ErrNotFound", err)
	}
}

func TestTouchCrossrefQuery(t *testing.T) {
	s := openTestStore(t)
	w := sampleWork("Jennings2019", "10.1/x")
	w.Authors = nil
	mustCreateWork(t, s, w)

	at := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	if err := s.TouchCrossrefQuery(w.ID, at); err != nil {
		t.Fatalf("TouchCrossrefQuery() error = %v", err)
	}

	got, err := s.GetWorkByLabel("Jennings2019")
	if err != nil {
		t.Fatalf("GetWorkByLabel() error = %v", err)
	}
	if !got.DOIQueried {
		t.Error("DOIQueried not set")
	}
	if !got.LastQueriedCrossref.Equal(at) {
		t.Errorf("LastQueriedCrossref = %v, want %v", got.LastQueriedCrossref, at)
	}
	if got.CanQueryCrossref(at.Add(time.Hour)) {
		t.Error("re-query allowed within 24h window")
	}
}

func TestListWorks_Order(t *testing.T) {
	s := openTestStore(t)

	older := sampleWork("Old2018", "")
	older.Authors = nil
	older.Published = work.PublicationDate{Year: 2018}
	mustCreateWork(t, s, older)

	newer := sampleWork("New2021", "")
	newer.Authors = nil
	newer.Published = work.PublicationDate{Year: 2021}
	mustCreateWork(t, s, newer)

	undated := sampleWork("Undated", "")
	undated.Authors = nil
	undated.Published = work.PublicationDate{}
	mustCreateWork(t, s, undated)

	works, err := s.ListWorks()
	if err != nil {
		t.Fatalf("ListWorks() error = %v", err)
	}
	var labels []string
	for _, w := range works {
		labels = append(labels, w.Label)
	}
	want := []string{"New2021", "Old2018", "Undated"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("order = %v, want %v", labels, want)
		}
	}
}

func TestUpdateWorkFields(t *testing.T) {
	s := openTestStore(t)
	w := sampleWork("Jennings2019", "10.1/x")
	w.Authors = nil
	mustCreateWork(t, s, w)

	w.Title = "Revised Title"
	w.Volume = "84"
	if err := s.UpdateWorkFields(w); err != nil {
		t.Fatalf("UpdateWorkFields() error = %v", err)
	}

	got, _ := s.GetWorkByDOI("10.1/x")
	if got.Title != "Revised Title" || got.Volume != "84" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.DOI != "10.1/x" {
		t.Errorf("identity field changed: %q", got.DOI)
	}
}
