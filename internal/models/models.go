package models

import (
	"time"
)

// NoKey is the sentinel surrogate id for an unset or unresolved reference.
// Surrogate ids handed out by the store start at 1.
const NoKey int64 = 0

// Repository represents a GitHub repository
type Repository struct {
	ID               int64
	InternalID       int64
	OwnerID          int64
	Owner            string
	Name             string
	Description      string
	HTMLURL          string
	DefaultBranch    string
	Private          bool
	Fork             bool
	Archived         bool
	TimeUpdated      time.Time
	TimePushed       time.Time
	TimeLastObserved time.Time
}

// FullName returns the "owner/name" form of the repository.
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// User represents a GitHub user
type User struct {
	ID          int64
	InternalID  int64
	Login       string
	AvatarURL   string
	HTMLURL     string
	Type        string
	TimeUpdated time.Time
}

// PullRequest represents a GitHub pull request.
//
// LabelIDs and AssigneeIDs hold the remote ids captured at the last sync and
// are only used to detect changes to the association tables.
type PullRequest struct {
	ID               int64
	InternalID       int64
	Number           int
	RepositoryID     int64
	AuthorID         int64
	Title            string
	Body             string
	State            string
	HTMLURL          string
	HeadSHA          string
	HeadRef          string
	Merged           bool
	Locked           bool
	Draft            bool
	LabelIDs         IDSet
	AssigneeIDs      IDSet
	TimeCreated      time.Time
	TimeUpdated      time.Time
	TimeMerged       time.Time
	TimeClosed       time.Time
	TimeLastObserved time.Time
}

// Issue represents a GitHub issue
type Issue struct {
	ID               int64
	InternalID       int64
	Number           int
	RepositoryID     int64
	AuthorID         int64
	Title            string
	Body             string
	State            string
	HTMLURL          string
	Locked           bool
	LabelIDs         IDSet
	AssigneeIDs      IDSet
	TimeCreated      time.Time
	TimeUpdated      time.Time
	TimeClosed       time.Time
	TimeLastObserved time.Time
}

// Label represents a GitHub label
type Label struct {
	ID          int64
	InternalID  int64
	Name        string
	Color       string
	Description string
	IsDefault   bool
	TimeUpdated time.Time
}

// Review represents a pull request review
type Review struct {
	ID               int64
	InternalID       int64
	PullRequestID    int64
	AuthorID         int64
	Body             string
	State            string
	HTMLURL          string
	CommitID         string
	TimeSubmitted    time.Time
	TimeLastObserved time.Time
}

// Release represents a repository release
type Release struct {
	ID               int64
	InternalID       int64
	RepositoryID     int64
	TagName          string
	Name             string
	HTMLURL          string
	Draft            bool
	Prerelease       bool
	TimeCreated      time.Time
	TimePublished    time.Time
	TimeLastObserved time.Time
}

// CheckRun is a single check result for a commit. Check runs are tied to pull
// requests through HeadSHA only.
type CheckRun struct {
	ID               int64
	InternalID       int64
	Name             string
	HeadSHA          string
	Status           CheckStatus
	Conclusion       CheckConclusion
	DetailsURL       string
	HTMLURL          string
	Summary          string
	TimeStarted      time.Time
	TimeCompleted    time.Time
	TimeLastObserved time.Time
}

// CheckSuite groups the check runs created by one app for a commit.
type CheckSuite struct {
	ID               int64
	InternalID       int64
	Name             string
	HeadSHA          string
	AppID            int64
	Status           CheckStatus
	Conclusion       CheckConclusion
	HTMLURL          string
	TimeCreated      time.Time
	TimeUpdated      time.Time
	TimeLastObserved time.Time
}

// CommitCombinedStatus is the legacy commit status aggregate for one head SHA.
type CommitCombinedStatus struct {
	ID               int64
	HeadSHA          string
	State            CommitState
	TotalCount       int
	TimeLastObserved time.Time
}

// PullRequestStatus is an immutable snapshot of a pull request's derived
// check status at one sync.
type PullRequestStatus struct {
	ID            int64
	PullRequestID int64
	HeadSHA       string
	Status        CheckStatus
	Conclusion    CheckConclusion
	State         CommitState
	Failed        bool
	Succeeded     bool
	DetailsURL    string
	Result        string
	TimeOccurred  time.Time
	TimeCreated   time.Time
}

// Notification is a candidate user-facing event.
type Notification struct {
	ID           int64
	Type         NotificationType
	UserID       int64
	RepositoryID int64
	Identifier   string
	Title        string
	Description  string
	DetailsURL   string
	HTMLURL      string
	Result       string
	Toasted      bool
	TimeOccurred time.Time
	TimeCreated  time.Time
}

// Search caches a free-text issue query scoped to a repository.
type Search struct {
	ID           int64
	Query        string
	RepositoryID int64
	TimeUpdated  time.Time
}

// SearchIssue links a search to one of its result issues.
type SearchIssue struct {
	SearchID    int64
	IssueID     int64
	TimeUpdated time.Time
}

// MetaData is a key/value row for process-level sync state.
type MetaData struct {
	Key   string
	Value string
}
