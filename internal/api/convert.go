package api

import (
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/wesm/pr-watch/internal/models"
)

// The Convert functions map remote records onto models. They fill remote
// fields only; surrogate ids and parent references are resolved by the
// reconciler. Missing values become zero values.

// Timestamp converts a remote timestamp to UTC at the store's millisecond
// precision. nil becomes the zero time.
func Timestamp(ts *github.Timestamp) time.Time {
	if ts == nil || ts.Time.IsZero() {
		return time.Time{}
	}
	return ts.Time.UTC().Truncate(time.Millisecond)
}

// ConvertUser converts a GitHub user to our model
func ConvertUser(user *github.User) *models.User {
	if user == nil {
		return nil
	}

	return &models.User{
		InternalID: user.GetID(),
		Login:      user.GetLogin(),
		AvatarURL:  user.GetAvatarURL(),
		HTMLURL:    user.GetHTMLURL(),
		Type:       user.GetType(),
	}
}

// ConvertRepository converts a GitHub repository to our model
func ConvertRepository(repo *github.Repository) *models.Repository {
	return &models.Repository{
		InternalID:    repo.GetID(),
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		Description:   repo.GetDescription(),
		HTMLURL:       repo.GetHTMLURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
		Fork:          repo.GetFork(),
		Archived:      repo.GetArchived(),
		TimeUpdated:   Timestamp(repo.UpdatedAt),
		TimePushed:    Timestamp(repo.PushedAt),
	}
}

// ConvertPullRequest converts a GitHub pull request to our model
func ConvertPullRequest(pr *github.PullRequest) *models.PullRequest {
	labelIDs := make([]int64, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labelIDs = append(labelIDs, l.GetID())
	}
	assigneeIDs := make([]int64, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assigneeIDs = append(assigneeIDs, a.GetID())
	}

	return &models.PullRequest{
		InternalID:  pr.GetID(),
		Number:      pr.GetNumber(),
		Title:       pr.GetTitle(),
		Body:        pr.GetBody(),
		State:       pr.GetState(),
		HTMLURL:     pr.GetHTMLURL(),
		HeadSHA:     pr.GetHead().GetSHA(),
		HeadRef:     pr.GetHead().GetRef(),
		Merged:      pr.GetMerged() || pr.MergedAt != nil,
		Locked:      pr.GetLocked(),
		Draft:       pr.GetDraft(),
		LabelIDs:    models.NewIDSet(labelIDs...),
		AssigneeIDs: models.NewIDSet(assigneeIDs...),
		TimeCreated: Timestamp(pr.CreatedAt),
		TimeUpdated: Timestamp(pr.UpdatedAt),
		TimeMerged:  Timestamp(pr.MergedAt),
		TimeClosed:  Timestamp(pr.ClosedAt),
	}
}

// ConvertIssue converts a GitHub issue to our model
func ConvertIssue(issue *github.Issue) *models.Issue {
	labelIDs := make([]int64, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labelIDs = append(labelIDs, l.GetID())
	}
	assigneeIDs := make([]int64, 0, len(issue.Assignees))
	for _, a := range issue.Assignees {
		assigneeIDs = append(assigneeIDs, a.GetID())
	}

	return &models.Issue{
		InternalID:  issue.GetID(),
		Number:      issue.GetNumber(),
		Title:       issue.GetTitle(),
		Body:        issue.GetBody(),
		State:       issue.GetState(),
		HTMLURL:     issue.GetHTMLURL(),
		Locked:      issue.GetLocked(),
		LabelIDs:    models.NewIDSet(labelIDs...),
		AssigneeIDs: models.NewIDSet(assigneeIDs...),
		TimeCreated: Timestamp(issue.CreatedAt),
		TimeUpdated: Timestamp(issue.UpdatedAt),
		TimeClosed:  Timestamp(issue.ClosedAt),
	}
}

// ConvertLabel converts a GitHub label to our model
func ConvertLabel(label *github.Label) *models.Label {
	return &models.Label{
		InternalID:  label.GetID(),
		Name:        label.GetName(),
		Color:       label.GetColor(),
		Description: label.GetDescription(),
		IsDefault:   label.GetDefault(),
	}
}

// ConvertReview converts a pull request review to our model
func ConvertReview(review *github.PullRequestReview) *models.Review {
	return &models.Review{
		InternalID:    review.GetID(),
		Body:          review.GetBody(),
		State:         review.GetState(),
		HTMLURL:       review.GetHTMLURL(),
		CommitID:      review.GetCommitID(),
		TimeSubmitted: Timestamp(review.SubmittedAt),
	}
}

// ConvertRelease converts a repository release to our model
func ConvertRelease(release *github.RepositoryRelease) *models.Release {
	return &models.Release{
		InternalID:    release.GetID(),
		TagName:       release.GetTagName(),
		Name:          release.GetName(),
		HTMLURL:       release.GetHTMLURL(),
		Draft:         release.GetDraft(),
		Prerelease:    release.GetPrerelease(),
		TimeCreated:   Timestamp(release.CreatedAt),
		TimePublished: Timestamp(release.PublishedAt),
	}
}

// ConvertCheckRun converts a check run to our model
func ConvertCheckRun(run *github.CheckRun) *models.CheckRun {
	return &models.CheckRun{
		InternalID:    run.GetID(),
		Name:          run.GetName(),
		HeadSHA:       run.GetHeadSHA(),
		Status:        models.ParseCheckStatus(run.GetStatus()),
		Conclusion:    models.ParseCheckConclusion(run.GetConclusion()),
		DetailsURL:    run.GetDetailsURL(),
		HTMLURL:       run.GetHTMLURL(),
		Summary:       run.GetOutput().GetSummary(),
		TimeStarted:   Timestamp(run.StartedAt),
		TimeCompleted: Timestamp(run.CompletedAt),
	}
}

// ConvertCheckSuite converts a check suite to our model
func ConvertCheckSuite(suite *github.CheckSuite) *models.CheckSuite {
	return &models.CheckSuite{
		InternalID:  suite.GetID(),
		Name:        suite.GetApp().GetName(),
		HeadSHA:     suite.GetHeadSHA(),
		AppID:       suite.GetApp().GetID(),
		Status:      models.ParseCheckStatus(suite.GetStatus()),
		Conclusion:  models.ParseCheckConclusion(suite.GetConclusion()),
		HTMLURL:     suite.GetURL(),
		TimeCreated: Timestamp(suite.CreatedAt),
		TimeUpdated: Timestamp(suite.UpdatedAt),
	}
}

// ConvertCombinedStatus converts a combined commit status to our model
func ConvertCombinedStatus(status *github.CombinedStatus) *models.CommitCombinedStatus {
	return &models.CommitCombinedStatus{
		HeadSHA:    status.GetSHA(),
		State:      models.ParseCommitState(status.GetState()),
		TotalCount: status.GetTotalCount(),
	}
}
