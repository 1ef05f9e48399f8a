package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// BuiltIn returns the standard scenario matrix: five basic and three complex
// git workflows covering commit, history-rewrite and merge paths.
func BuiltIn() []Scenario {
	return []Scenario{
		{
			Key:         "commit_human",
			Description: "Human-only add/commit on modified tracked files",
			Complexity:  Basic,
			Setup:       setupHumanCommit,
			Measure:     measureHumanCommit,
		},
		{
			Key:         "checkpoint_commit_shim",
			Description: "Shim checkpoint + commit flow",
			Complexity:  Basic,
			Setup:       setupCheckpointCommit,
			Measure:     measureCheckpointCommit,
		},
		{
			Key:         "reset_mixed_head6",
			Description: "Reset mixed with pending worktree edits",
			Complexity:  Basic,
			Setup:       setupResetMixed,
			Measure:     measureResetMixed,
		},
		{
			Key:         "stash_roundtrip",
			Description: "stash push -u + pop on checkpointed and untracked files",
			Complexity:  Basic,
			Setup:       setupStashRoundtrip,
			Measure:     measureStashRoundtrip,
		},
		{
			Key:         "cherry_pick_three",
			Description: "Cherry-pick three checkpointed commits onto diverged main",
			Complexity:  Basic,
			Setup:       setupCherryPickThree,
			Measure:     measureCherryPickThree,
		},
		{
			Key:         "rebase_linear",
			Description: "Linear feature branch rebase onto updated main",
			Complexity:  Complex,
			Setup:       setupRebaseLinear,
			Measure:     measureRebaseLinear,
		},
		{
			Key:         "rebase_rebase_merges",
			Description: "Rebase-merges on branch with merge commit",
			Complexity:  Complex,
			Setup:       setupRebaseMerges,
			Measure:     measureRebaseMerges,
		},
		{
			Key:         "squash_merge_commit",
			Description: "merge --squash + commit from feature branch",
			Complexity:  Complex,
			Setup:       setupSquashMerge,
			Measure:     measureSquashMerge,
		},
	}
}

// seedBasicRepo initializes repoDir with fileCount seeded files in a single
// commit and returns their repo-relative paths.
func seedBasicRepo(ctx context.Context, r Runner, repoDir string, fileCount int) ([]string, error) {
	if err := r.InitRepo(ctx, repoDir); err != nil {
		return nil, err
	}
	files := make([]string, 0, fileCount)
	for i := 0; i < fileCount; i++ {
		rel := fmt.Sprintf("bench/basic/file_%03d.txt", i)
		if err := WriteSeedFile(filepath.Join(repoDir, rel), 1000+i, 70); err != nil {
			return nil, err
		}
		files = append(files, rel)
	}
	if _, err := r.RunGit(ctx, repoDir, "add", "-A"); err != nil {
		return nil, err
	}
	if _, err := r.RunGit(ctx, repoDir, "commit", "-q", "-m", "seed basic"); err != nil {
		return nil, err
	}
	return files, nil
}

// seedStructuredRepo initializes repoDir with three file groups used by the
// branching scenarios.
func seedStructuredRepo(ctx context.Context, r Runner, repoDir string) (map[string][]string, error) {
	if err := r.InitRepo(ctx, repoDir); err != nil {
		return nil, err
	}
	groups := map[string][]string{}
	for group, count := range map[string]int{"main": 8, "feature": 10, "side": 6} {
		for i := 0; i < count; i++ {
			groups[group] = append(groups[group], fmt.Sprintf("bench/%s/%s_%02d.txt", group, group, i))
		}
	}
	seed := 2000
	for _, group := range []string{"main", "feature", "side"} {
		for _, rel := range groups[group] {
			if err := WriteSeedFile(filepath.Join(repoDir, rel), seed, 80); err != nil {
				return nil, err
			}
			seed++
		}
	}
	if _, err := r.RunGit(ctx, repoDir, "add", "-A"); err != nil {
		return nil, err
	}
	if _, err := r.RunGit(ctx, repoDir, "commit", "-q", "-m", "seed structured"); err != nil {
		return nil, err
	}
	return groups, nil
}

// checkpointFiles records a shim checkpoint for the given files, attributing
// them to the synthetic agent author.
func checkpointFiles(ctx context.Context, r Runner, repoDir string, files []string) error {
	if len(files) == 0 {
		return nil
	}
	args := append([]string{"checkpoint", "agent"}, files...)
	_, err := r.RunShim(ctx, repoDir, args...)
	return err
}

// createShimCommit appends marker lines, checkpoints the files through the
// shim, then commits.
func createShimCommit(ctx context.Context, r Runner, repoDir string, files []string, marker, message string) error {
	for _, rel := range files {
		if err := AppendLine(filepath.Join(repoDir, rel), marker); err != nil {
			return err
		}
	}
	if err := checkpointFiles(ctx, r, repoDir, files); err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, repoDir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, repoDir, "commit", "-q", "-m", message)
	return err
}

// createPlainCommit appends marker lines and commits without a checkpoint.
func createPlainCommit(ctx context.Context, r Runner, repoDir string, files []string, marker, message string) error {
	for _, rel := range files {
		if err := AppendLine(filepath.Join(repoDir, rel), marker); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, repoDir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, repoDir, "commit", "-q", "-m", message)
	return err
}

func setupHumanCommit(ctx context.Context, r Runner, dir string) error {
	_, err := seedBasicRepo(ctx, r, dir, 24)
	return err
}

func measureHumanCommit(ctx context.Context, r Runner, dir string, runIndex int) error {
	for idx := 0; idx < 6; idx++ {
		rel := fmt.Sprintf("bench/basic/file_%03d.txt", idx)
		if err := AppendLine(filepath.Join(dir, rel), fmt.Sprintf("human-change run=%d idx=%d", runIndex, idx)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, dir, "commit", "-q", "-m", fmt.Sprintf("bench human run %d", runIndex))
	return err
}

func setupCheckpointCommit(ctx context.Context, r Runner, dir string) error {
	_, err := seedBasicRepo(ctx, r, dir, 24)
	return err
}

func measureCheckpointCommit(ctx context.Context, r Runner, dir string, runIndex int) error {
	files := make([]string, 0, 5)
	for idx := 0; idx < 5; idx++ {
		rel := fmt.Sprintf("bench/basic/file_%03d.txt", idx)
		if err := AppendLine(filepath.Join(dir, rel), fmt.Sprintf("shim-change run=%d idx=%d", runIndex, idx)); err != nil {
			return err
		}
		files = append(files, rel)
	}
	if err := checkpointFiles(ctx, r, dir, files); err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "add", "-A"); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, dir, "commit", "-q", "-m", fmt.Sprintf("bench shim commit run %d", runIndex))
	return err
}

func setupResetMixed(ctx context.Context, r Runner, dir string) error {
	files, err := seedBasicRepo(ctx, r, dir, 24)
	if err != nil {
		return err
	}
	for i := 0; i < 12; i++ {
		target := files[i%len(files)]
		if err := createShimCommit(ctx, r, dir, []string{target},
			fmt.Sprintf("history-shim-%d", i), fmt.Sprintf("history shim commit %d", i)); err != nil {
			return err
		}
	}
	return nil
}

func measureResetMixed(ctx context.Context, r Runner, dir string, runIndex int) error {
	for i := 0; i < 5; i++ {
		rel := fmt.Sprintf("bench/basic/file_%03d.txt", i)
		if err := AppendLine(filepath.Join(dir, rel), fmt.Sprintf("pending-reset-%d-%d", runIndex, i)); err != nil {
			return err
		}
	}
	_, err := r.RunGit(ctx, dir, "reset", "--mixed", "HEAD~6")
	return err
}

func setupStashRoundtrip(ctx context.Context, r Runner, dir string) error {
	files, err := seedBasicRepo(ctx, r, dir, 24)
	if err != nil {
		return err
	}
	return createShimCommit(ctx, r, dir, files[:3], "seed-shim-stash", "seed shim for stash")
}

func measureStashRoundtrip(ctx context.Context, r Runner, dir string, runIndex int) error {
	tracked := make([]string, 0, 5)
	for i := 4; i < 9; i++ {
		tracked = append(tracked, fmt.Sprintf("bench/basic/file_%03d.txt", i))
	}
	for idx, rel := range tracked {
		if err := AppendLine(filepath.Join(dir, rel), fmt.Sprintf("stash-tracked-%d-%d", runIndex, idx)); err != nil {
			return err
		}
	}
	if err := checkpointFiles(ctx, r, dir, tracked[:3]); err != nil {
		return err
	}
	untracked := filepath.Join(dir, "bench", fmt.Sprintf("untracked_%d.txt", runIndex))
	if err := WriteSeedFile(untracked, 7000+runIndex, 20); err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "stash", "push", "-u", "-m", fmt.Sprintf("bench stash %d", runIndex)); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, dir, "stash", "pop")
	return err
}

func setupCherryPickThree(ctx context.Context, r Runner, dir string) error {
	files, err := seedBasicRepo(ctx, r, dir, 24)
	if err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "-b", "feature"); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if err := createShimCommit(ctx, r, dir, []string{files[i]},
			fmt.Sprintf("feature-cherry-%d", i), fmt.Sprintf("feature cherry commit %d", i)); err != nil {
			return err
		}
		if _, err := r.RunGit(ctx, dir, "tag", fmt.Sprintf("bench-cherry-%d", i), "HEAD"); err != nil {
			return err
		}
	}
	if err := createPlainCommit(ctx, r, dir, []string{files[10]}, "feature-extra", "feature extra commit"); err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "main"); err != nil {
		return err
	}
	return createPlainCommit(ctx, r, dir, []string{files[20]}, "main-diverge", "main diverge commit")
}

func measureCherryPickThree(ctx context.Context, r Runner, dir string, runIndex int) error {
	commits := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		out, err := r.RunGit(ctx, dir, "rev-parse", fmt.Sprintf("bench-cherry-%d", i))
		if err != nil {
			return err
		}
		sha := strings.TrimSpace(out.Stdout)
		if sha == "" {
			return fmt.Errorf("missing feature commit bench-cherry-%d", i)
		}
		commits = append(commits, sha)
	}
	args := append([]string{"cherry-pick"}, commits...)
	_, err := r.RunGit(ctx, dir, args...)
	return err
}

func setupRebaseLinear(ctx context.Context, r Runner, dir string) error {
	groups, err := seedStructuredRepo(ctx, r, dir)
	if err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := createPlainCommit(ctx, r, dir, []string{groups["main"][i%len(groups["main"])]},
			fmt.Sprintf("main-pre-feature-%d", i), fmt.Sprintf("main pre feature %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "-b", "feature", "main~3"); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		if err := createShimCommit(ctx, r, dir, []string{groups["feature"][i%len(groups["feature"])]},
			fmt.Sprintf("feature-linear-%d", i), fmt.Sprintf("feature linear %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "main"); err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if err := createPlainCommit(ctx, r, dir, []string{groups["main"][(i+4)%len(groups["main"])]},
			fmt.Sprintf("main-after-feature-%d", i), fmt.Sprintf("main after feature %d", i)); err != nil {
			return err
		}
	}
	_, err = r.RunGit(ctx, dir, "checkout", "-q", "feature")
	return err
}

func measureRebaseLinear(ctx context.Context, r Runner, dir string, runIndex int) error {
	_, err := r.RunGit(ctx, dir, "rebase", "main")
	return err
}

func setupRebaseMerges(ctx context.Context, r Runner, dir string) error {
	groups, err := seedStructuredRepo(ctx, r, dir)
	if err != nil {
		return err
	}
	for i := 0; i < 5; i++ {
		if err := createPlainCommit(ctx, r, dir, []string{groups["main"][i%len(groups["main"])]},
			fmt.Sprintf("main-start-%d", i), fmt.Sprintf("main start %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "-b", "feature", "main~2"); err != nil {
		return err
	}
	for i := 0; i < 6; i++ {
		if err := createShimCommit(ctx, r, dir, []string{groups["feature"][i%len(groups["feature"])]},
			fmt.Sprintf("feature-rm-%d", i), fmt.Sprintf("feature rm %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "-b", "side", "feature~3"); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := createShimCommit(ctx, r, dir, []string{groups["side"][i%len(groups["side"])]},
			fmt.Sprintf("side-rm-%d", i), fmt.Sprintf("side rm %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "feature"); err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "merge", "--no-ff", "-q", "-m", "merge side", "side"); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := createShimCommit(ctx, r, dir, []string{groups["feature"][(i+6)%len(groups["feature"])]},
			fmt.Sprintf("feature-post-merge-%d", i), fmt.Sprintf("feature post merge %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "main"); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := createPlainCommit(ctx, r, dir, []string{groups["main"][(i+5)%len(groups["main"])]},
			fmt.Sprintf("main-upstream-%d", i), fmt.Sprintf("main upstream %d", i)); err != nil {
			return err
		}
	}
	_, err = r.RunGit(ctx, dir, "checkout", "-q", "feature")
	return err
}

func measureRebaseMerges(ctx context.Context, r Runner, dir string, runIndex int) error {
	_, err := r.RunGit(ctx, dir, "rebase", "--rebase-merges", "main")
	return err
}

func setupSquashMerge(ctx context.Context, r Runner, dir string) error {
	groups, err := seedStructuredRepo(ctx, r, dir)
	if err != nil {
		return err
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "-b", "feature"); err != nil {
		return err
	}
	for i := 0; i < 10; i++ {
		if err := createShimCommit(ctx, r, dir, []string{groups["feature"][i%len(groups["feature"])]},
			fmt.Sprintf("squash-feature-%d", i), fmt.Sprintf("squash feature %d", i)); err != nil {
			return err
		}
	}
	if _, err := r.RunGit(ctx, dir, "checkout", "-q", "main"); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := createPlainCommit(ctx, r, dir, []string{groups["main"][i%len(groups["main"])]},
			fmt.Sprintf("squash-main-%d", i), fmt.Sprintf("squash main %d", i)); err != nil {
			return err
		}
	}
	return nil
}

func measureSquashMerge(ctx context.Context, r Runner, dir string, runIndex int) error {
	if _, err := r.RunGit(ctx, dir, "merge", "--squash", "feature"); err != nil {
		return err
	}
	_, err := r.RunGit(ctx, dir, "commit", "-q", "-m", fmt.Sprintf("squash merge run %d", runIndex))
	return err
}
