package consensus

import "testing"

func TestQuorum(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{3, 3},
		{4, 3},
		{7, 5},
		{10, 7},
	}
	for _, c := range cases {
		if got := Quorum(c.n); got != c.want {
			t.Errorf("Quorum(%d): got %d want %d", c.n, got, c.want)
		}
	}
}

func TestTallyAddPreVoteReachesQuorumOnce(t *testing.T) {
	tally := NewTally(1)
	const validatorCount = 4 // quorum = 3
	hash := "block-hash-a"

	if got := tally.AddPreVote(1, hash, "v1", validatorCount); got {
		t.Error("quorum should not be reached after 1 of 4 votes")
	}
	if got := tally.AddPreVote(1, hash, "v2", validatorCount); got {
		t.Error("quorum should not be reached after 2 of 4 votes")
	}
	if got := tally.AddPreVote(1, hash, "v3", validatorCount); !got {
		t.Error("quorum should be reached on the 3rd of 4 votes")
	}
	if got := tally.AddPreVote(1, hash, "v4", validatorCount); got {
		t.Error("quorum should only be announced once, not again on a later vote")
	}
	if count := tally.PreVoteCount(hash); count != 4 {
		t.Errorf("PreVoteCount: got %d want 4", count)
	}
}

func TestTallyIgnoresVotesForWrongHeight(t *testing.T) {
	tally := NewTally(5)
	if got := tally.AddPreVote(4, "hash", "v1", 1); got {
		t.Error("vote for a height other than the tally's current height should be ignored")
	}
	if count := tally.PreVoteCount("hash"); count != 0 {
		t.Errorf("vote for wrong height should not be recorded, got count %d", count)
	}
}

func TestTallyDuplicateVoterDoesNotDoubleCount(t *testing.T) {
	tally := NewTally(1)
	tally.AddPreVote(1, "hash", "v1", 4)
	tally.AddPreVote(1, "hash", "v1", 4)
	if count := tally.PreVoteCount("hash"); count != 1 {
		t.Errorf("same voter voting twice should count once, got %d", count)
	}
}

func TestTallyAdvanceResetsState(t *testing.T) {
	tally := NewTally(1)
	tally.AddPreVote(1, "hash", "v1", 1)
	tally.AddPreCommit(1, "hash", "v1", 1)

	tally.Advance(2)
	if tally.Height() != 2 {
		t.Errorf("Height after Advance: got %d want 2", tally.Height())
	}
	if count := tally.PreVoteCount("hash"); count != 0 {
		t.Error("Advance should clear prevote state from the previous height")
	}
	if count := tally.PreCommitCount("hash"); count != 0 {
		t.Error("Advance should clear precommit state from the previous height")
	}
}

func TestTallyPreVoteAndPreCommitAreIndependent(t *testing.T) {
	tally := NewTally(1)
	tally.AddPreVote(1, "hash", "v1", 4)
	if count := tally.PreCommitCount("hash"); count != 0 {
		t.Errorf("a prevote must not be counted as a precommit, got %d", count)
	}
}
