package portal

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/taarifa/core"
	"github.com/trezcool/taarifa/core/school"
	"github.com/trezcool/taarifa/core/user"
)

var errNoop = errors.New("nothing to change")

func announcements(s *State) *[]school.Announcement { return &s.Announcements }
func exams(s *State) *[]school.Exam                 { return &s.Exams }
func polls(s *State) *[]school.Poll                 { return &s.Polls }
func resources(s *State) *[]school.Resource         { return &s.Resources }

// Announcements

func (c *Controller) CreateAnnouncement(ctx context.Context, author user.User, f school.AnnouncementForm) (school.Announcement, error) {
	ann := school.Announcement{
		ID:          c.newID(),
		Title:       f.Title,
		Subject:     f.Subject,
		MeetLink:    f.MeetLink,
		Date:        c.now(),
		IsUrgent:    f.IsUrgent,
		TargetClass: f.TargetClass,
		AuthorID:    author.ID,
		AuthorName:  author.Name,
	}
	if f.Date != nil {
		ann.Date = f.Date.UTC()
	}

	err := c.run(ctx, mutation{
		entity: core.TableAnnouncements,
		op:     OpCreate,
		apply:  insertLocal(announcements, ann),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TableAnnouncements, announcementRow(ann))
		},
	})
	if err != nil {
		return school.Announcement{}, err
	}
	return ann, nil
}

// UpdateAnnouncement rewrites the announcement content. Its author never changes.
func (c *Controller) UpdateAnnouncement(ctx context.Context, id string, f school.AnnouncementForm) (school.Announcement, error) {
	var updated school.Announcement
	err := c.run(ctx, mutation{
		entity: core.TableAnnouncements,
		op:     OpUpdate,
		apply: replaceLocal(announcements, id, func(cur school.Announcement) (school.Announcement, error) {
			cur.Title = f.Title
			cur.Subject = f.Subject
			cur.MeetLink = f.MeetLink
			cur.IsUrgent = f.IsUrgent
			cur.TargetClass = f.TargetClass
			if f.Date != nil {
				cur.Date = f.Date.UTC()
			}
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			return c.store.Update(ctx, core.TableAnnouncements, id, withoutIDColumn(announcementRow(updated)))
		},
	})
	if err != nil {
		return school.Announcement{}, err
	}
	return updated, nil
}

func (c *Controller) DeleteAnnouncement(ctx context.Context, id string) error {
	return c.run(ctx, mutation{
		entity: core.TableAnnouncements,
		op:     OpDelete,
		apply:  deleteLocal(announcements, id),
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TableAnnouncements, id)
		}),
	})
}

// Exams

func (c *Controller) CreateExam(ctx context.Context, author user.User, f school.ExamForm) (school.Exam, error) {
	exam := school.Exam{
		ID:              c.newID(),
		Subject:         f.Subject,
		Date:            f.Day(),
		StartTime:       f.StartTime,
		DurationMinutes: f.DurationMinutes,
		Room:            f.Room,
		Notes:           f.Notes,
		TargetClass:     f.TargetClass,
		CreatedByID:     author.ID,
	}

	err := c.run(ctx, mutation{
		entity: core.TableExams,
		op:     OpCreate,
		apply:  insertLocal(exams, exam),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TableExams, examRow(exam))
		},
	})
	if err != nil {
		return school.Exam{}, err
	}
	return exam, nil
}

func (c *Controller) UpdateExam(ctx context.Context, id string, f school.ExamForm) (school.Exam, error) {
	var updated school.Exam
	err := c.run(ctx, mutation{
		entity: core.TableExams,
		op:     OpUpdate,
		apply: replaceLocal(exams, id, func(cur school.Exam) (school.Exam, error) {
			cur.Subject = f.Subject
			cur.Date = f.Day()
			cur.StartTime = f.StartTime
			cur.DurationMinutes = f.DurationMinutes
			cur.Room = f.Room
			cur.Notes = f.Notes
			cur.TargetClass = f.TargetClass
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			return c.store.Update(ctx, core.TableExams, id, withoutIDColumn(examRow(updated)))
		},
	})
	if err != nil {
		return school.Exam{}, err
	}
	return updated, nil
}

func (c *Controller) DeleteExam(ctx context.Context, id string) error {
	return c.run(ctx, mutation{
		entity: core.TableExams,
		op:     OpDelete,
		apply:  deleteLocal(exams, id),
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TableExams, id)
		}),
	})
}

// Polls

func (c *Controller) pollOptions(forms []school.PollOptionForm) []school.PollOption {
	options := make([]school.PollOption, 0, len(forms))
	for _, opt := range forms {
		id := opt.ID
		if id == "" {
			id = c.newID()
		}
		options = append(options, school.PollOption{ID: id, Text: opt.Text})
	}
	return options
}

func (c *Controller) CreatePoll(ctx context.Context, author user.User, f school.PollForm) (school.Poll, error) {
	poll := school.Poll{
		ID:          c.newID(),
		Title:       f.Title,
		Options:     c.pollOptions(f.Options),
		IsAnonymous: f.IsAnonymous,
		CreatedAt:   c.now(),
		ExpiresAt:   f.ExpiresAt.UTC(),
		TargetClass: f.TargetClass,
		CreatedByID: author.ID,
		Ledger:      make(map[string]string),
	}
	row, err := pollRow(poll)
	if err != nil {
		return school.Poll{}, err
	}

	err = c.run(ctx, mutation{
		entity: core.TablePolls,
		op:     OpCreate,
		apply:  insertLocal(polls, poll.Clone()),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TablePolls, row)
		},
	})
	if err != nil {
		return school.Poll{}, err
	}
	return poll, nil
}

// UpdatePoll edits a poll. Options keep their votes when their id is sent back; votes for removed
// options are dropped.
func (c *Controller) UpdatePoll(ctx context.Context, id string, f school.PollForm) (school.Poll, error) {
	options := c.pollOptions(f.Options)
	var updated school.Poll
	err := c.run(ctx, mutation{
		entity: core.TablePolls,
		op:     OpUpdate,
		apply: replaceLocal(polls, id, func(cur school.Poll) (school.Poll, error) {
			cur = cur.Clone()
			cur.Title = f.Title
			cur.IsAnonymous = f.IsAnonymous
			cur.ExpiresAt = f.ExpiresAt.UTC()
			cur.TargetClass = f.TargetClass
			cur.ReplaceOptions(options)
			updated = cur.Clone()
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			row, err := pollRow(updated)
			if err != nil {
				return err
			}
			return c.store.Update(ctx, core.TablePolls, id, withoutIDColumn(row))
		},
	})
	if err != nil {
		return school.Poll{}, err
	}
	return updated, nil
}

func (c *Controller) DeletePoll(ctx context.Context, id string) error {
	return c.run(ctx, mutation{
		entity: core.TablePolls,
		op:     OpDelete,
		apply:  deleteLocal(polls, id),
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TablePolls, id)
		}),
	})
}

// Vote casts or moves the vote of `voter` on a poll they can see. Voting again for the same option
// changes nothing and makes no remote call. When the remote store rejects the vote, everything is
// reloaded from it.
func (c *Controller) Vote(ctx context.Context, pollID string, voter user.User, optionID string) (school.Poll, error) {
	now := c.now()
	var voted school.Poll
	err := c.run(ctx, mutation{
		entity: core.TablePolls,
		op:     OpVote,
		apply: func(s *State) (undoFunc, error) {
			idx := indexByID(s.Polls, pollID)
			if idx < 0 || !school.CanSee(voter, s.Polls[idx]) {
				return nil, ErrNotFound
			}
			orig := s.Polls[idx]
			if orig.IsExpired(now) {
				return nil, school.ErrPollExpired
			}
			poll := orig.Clone()
			changed, err := poll.CastVote(voter.ID, optionID)
			if err != nil {
				return nil, err
			}
			voted = poll.Clone()
			if !changed {
				return nil, errNoop
			}
			prevOption, _ := orig.VoteOf(voter.ID)
			s.Polls = replaceAt(s.Polls, idx, poll)
			return func(s *State) {
				if i := indexByID(s.Polls, pollID); i >= 0 {
					restored := s.Polls[i].Clone()
					restored.ResetVote(voter.ID, prevOption)
					s.Polls = replaceAt(s.Polls, i, restored)
				}
			}, nil
		},
		remote: func(ctx context.Context) error {
			row, err := pollVotesRow(voted)
			if err != nil {
				return err
			}
			return c.store.Update(ctx, core.TablePolls, pollID, row)
		},
		onFailure: func(error) failure {
			return failure{message: "Your vote could not be saved. The polls were reloaded, please vote again.", reload: true}
		},
	})
	if err == errNoop {
		observe(core.TablePolls, OpVote, outcomeNoop)
		return voted, nil
	}
	if err != nil {
		return school.Poll{}, err
	}
	return voted, nil
}

// Resources

func (c *Controller) CreateResource(ctx context.Context, author user.User, f school.ResourceForm) (school.Resource, error) {
	res := school.Resource{
		ID:          c.newID(),
		Title:       f.Title,
		Type:        f.Type,
		Content:     f.Content,
		Subject:     f.Subject,
		Description: f.Description,
		TargetClass: f.TargetClass,
		CreatedAt:   c.now(),
		CreatedByID: author.ID,
	}

	err := c.run(ctx, mutation{
		entity: core.TableResources,
		op:     OpCreate,
		apply:  insertLocal(resources, res),
		remote: func(ctx context.Context) error {
			return c.store.Insert(ctx, core.TableResources, resourceRow(res))
		},
	})
	if err != nil {
		return school.Resource{}, err
	}
	return res, nil
}

func (c *Controller) UpdateResource(ctx context.Context, id string, f school.ResourceForm) (school.Resource, error) {
	var updated school.Resource
	err := c.run(ctx, mutation{
		entity: core.TableResources,
		op:     OpUpdate,
		apply: replaceLocal(resources, id, func(cur school.Resource) (school.Resource, error) {
			cur.Title = f.Title
			cur.Type = f.Type
			cur.Content = f.Content
			cur.Subject = f.Subject
			cur.Description = f.Description
			cur.TargetClass = f.TargetClass
			updated = cur
			return cur, nil
		}),
		remote: func(ctx context.Context) error {
			return c.store.Update(ctx, core.TableResources, id, withoutIDColumn(resourceRow(updated)))
		},
	})
	if err != nil {
		return school.Resource{}, err
	}
	return updated, nil
}

func (c *Controller) DeleteResource(ctx context.Context, id string) error {
	return c.run(ctx, mutation{
		entity: core.TableResources,
		op:     OpDelete,
		apply:  deleteLocal(resources, id),
		remote: ignoreRowNotFound(func(ctx context.Context) error {
			return c.store.Delete(ctx, core.TableResources, id)
		}),
	})
}
