package fsmonitor

import "testing"

func TestTranslateGlobSingleSegment(t *testing.T) {
	re, err := translateGlob("*")
	if err != nil {
		t.Fatalf("translateGlob: %v", err)
	}
	if !re.MatchString("A.txt") {
		t.Errorf("expected %q to match direct file", "A.txt")
	}
	if re.MatchString("sub/A.txt") {
		t.Errorf("expected %q NOT to match nested file for single '*'", "sub/A.txt")
	}
}

func TestTranslateGlobRecursive(t *testing.T) {
	re, err := translateGlob("**/*")
	if err != nil {
		t.Fatalf("translateGlob: %v", err)
	}
	if !re.MatchString("A.txt") {
		t.Errorf("expected recursive glob to also match a top-level file")
	}
	if !re.MatchString("sub/deep/A.txt") {
		t.Errorf("expected recursive glob to match nested file")
	}
}

func TestTranslateGlobLiteralPath(t *testing.T) {
	re, err := translateGlob("start/A.txt")
	if err != nil {
		t.Fatalf("translateGlob: %v", err)
	}
	if !re.MatchString("start/A.txt") {
		t.Errorf("expected literal path to match itself")
	}
	if re.MatchString("start/B.txt") {
		t.Errorf("expected literal path not to match a different file")
	}
}

func TestGlobCacheReusesCompiledPattern(t *testing.T) {
	c := newGlobCache()
	re1, err := c.get("*.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	re2, err := c.get("*.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if re1 != re2 {
		t.Errorf("expected cached compile to return the same *Regexp")
	}
}
