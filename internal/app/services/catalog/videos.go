package catalog

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/catalog"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// VideoInput creates or patches a video. Nil fields keep their value.
type VideoInput struct {
	Course      *int64  `json:"course"`
	Title       *string `json:"title"`
	Description *string `json:"description_video"`
	VideoURL    *string `json:"video"`
	SizeBytes   *int64  `json:"size_bytes"`
	IsFree      *bool   `json:"is_free"`
}

// ListVisibleVideos returns the free videos of a course, or all of them when
// userID is enrolled.
func (s *Service) ListVisibleVideos(ctx context.Context, courseID, userID int64) ([]catalog.Video, error) {
	key := cache.KeyVideosCourseUser(courseID, userID)
	return cache.GetOrLoad(ctx, s.cache, key, cache.DefaultTTL, func(ctx context.Context) ([]catalog.Video, error) {
		if _, err := s.store.GetCourse(ctx, courseID); err != nil {
			return nil, err
		}
		enrolled := false
		if userID != 0 {
			_, err := s.store.FindEnrollment(ctx, userID, courseID)
			switch {
			case err == nil:
				enrolled = true
			case !errors.Is(err, storage.ErrNotFound):
				return nil, err
			}
		}
		videos, err := s.store.ListVideos(ctx, courseID)
		if err != nil {
			return nil, err
		}
		visible := make([]catalog.Video, 0, len(videos))
		for _, v := range videos {
			if v.IsFree || enrolled {
				visible = append(visible, v)
			}
		}
		return visible, nil
	})
}

// ListManagedVideos returns the videos p may manage in courseID. A zero
// courseID lists across every course the caller may manage.
func (s *Service) ListManagedVideos(ctx context.Context, p auth.Principal, courseID int64) ([]catalog.Video, error) {
	if courseID != 0 {
		if _, err := s.GetCourse(ctx, p, courseID); err != nil {
			return nil, err
		}
		return s.store.ListVideos(ctx, courseID)
	}
	courses, err := s.ListCoursesFor(ctx, p)
	if err != nil {
		return nil, err
	}
	videos := make([]catalog.Video, 0)
	for _, c := range courses {
		vs, err := s.store.ListVideos(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		videos = append(videos, vs...)
	}
	return videos, nil
}

// GetManagedVideo returns a video in a course p may manage.
func (s *Service) GetManagedVideo(ctx context.Context, p auth.Principal, id int64) (catalog.Video, error) {
	video, err := s.store.GetVideo(ctx, id)
	if err != nil {
		return catalog.Video{}, err
	}
	if _, err := s.GetCourse(ctx, p, video.CourseID); err != nil {
		return catalog.Video{}, fmt.Errorf("video %d: %w", id, storage.ErrNotFound)
	}
	return video, nil
}

// CreateVideo adds a video to a course the caller may manage.
func (s *Service) CreateVideo(ctx context.Context, p auth.Principal, in VideoInput) (catalog.Video, error) {
	var video catalog.Video
	if in.Course == nil {
		return catalog.Video{}, apperrors.Validation("course", "This field is required.")
	}
	if in.VideoURL == nil {
		return catalog.Video{}, apperrors.Validation("video", "This field is required.")
	}
	course, err := s.ownedCourse(ctx, p, *in.Course)
	if err != nil {
		return catalog.Video{}, err
	}
	if err := s.applyVideoInput(&video, in); err != nil {
		return catalog.Video{}, err
	}
	video.CourseID = course.ID
	if course.IsFree {
		video.IsFree = true
	}

	created, err := s.store.CreateVideo(ctx, video)
	if err != nil {
		return catalog.Video{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyVideosCourseAll(course.ID))
	s.record(ctx, domainaudit.ActionAdd, "video", created.ID, created.Title)
	return created, nil
}

// UpdateVideo patches a video. Moving it to another course requires
// managing both.
func (s *Service) UpdateVideo(ctx context.Context, p auth.Principal, id int64, in VideoInput) (catalog.Video, error) {
	video, err := s.GetManagedVideo(ctx, p, id)
	if err != nil {
		return catalog.Video{}, err
	}
	previousCourse := video.CourseID
	if in.Course != nil && *in.Course != video.CourseID {
		if _, err := s.ownedCourse(ctx, p, *in.Course); err != nil {
			return catalog.Video{}, err
		}
		video.CourseID = *in.Course
	}
	if err := s.applyVideoInput(&video, in); err != nil {
		return catalog.Video{}, err
	}
	course, err := s.store.GetCourse(ctx, video.CourseID)
	if err != nil {
		return catalog.Video{}, err
	}
	if course.IsFree {
		video.IsFree = true
	}

	updated, err := s.store.UpdateVideo(ctx, video)
	if err != nil {
		return catalog.Video{}, err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyVideosCourseAll(previousCourse), cache.KeyVideosCourseAll(updated.CourseID))
	s.record(ctx, domainaudit.ActionChange, "video", updated.ID, updated.Title)
	return updated, nil
}

// DeleteVideo removes a video from a course the caller may manage.
func (s *Service) DeleteVideo(ctx context.Context, p auth.Principal, id int64) error {
	video, err := s.GetManagedVideo(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteVideo(ctx, id); err != nil {
		return err
	}
	cache.Invalidate(ctx, s.cache, cache.KeyVideosCourseAll(video.CourseID))
	s.record(ctx, domainaudit.ActionDelete, "video", id, video.Title)
	return nil
}

// ownedCourse loads courseID and rejects callers that do not own it.
func (s *Service) ownedCourse(ctx context.Context, p auth.Principal, courseID int64) (catalog.Course, error) {
	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Course{}, apperrors.Validation("course", "Course not found.")
		}
		return catalog.Course{}, err
	}
	if p.IsAdmin() {
		return course, nil
	}
	if !p.IsTeacher() {
		return catalog.Course{}, apperrors.Validation("course", "Only teachers can add videos.")
	}
	if course.TeacherID != p.UserID {
		return catalog.Course{}, apperrors.Validation("course", "You cannot add a video to a course you do not own.")
	}
	return course, nil
}

func (s *Service) applyVideoInput(video *catalog.Video, in VideoInput) error {
	if in.Title != nil {
		video.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if utf8.RuneCountInString(desc) > catalog.MaxVideoDescription {
			return apperrors.Validation("description_video",
				fmt.Sprintf("Ensure this field has no more than %d characters.", catalog.MaxVideoDescription))
		}
		video.Description = desc
	}
	if in.VideoURL != nil {
		ref := strings.TrimSpace(*in.VideoURL)
		if ref == "" {
			return apperrors.Validation("video", "This field is required.")
		}
		if err := ValidateVideoRef(ref); err != nil {
			return err
		}
		video.VideoURL = ref
	}
	if in.SizeBytes != nil {
		if err := ValidateVideoSize(*in.SizeBytes, s.limits.VideoMaxMB); err != nil {
			return err
		}
		video.SizeBytes = *in.SizeBytes
	}
	if in.IsFree != nil {
		video.IsFree = *in.IsFree
	}
	return nil
}

// ValidateVideoRef accepts only .mp4 files.
func ValidateVideoRef(ref string) error {
	clean := ref
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if !strings.EqualFold(path.Ext(clean), ".mp4") {
		return apperrors.Validation("video", "File extension is not allowed. Allowed extensions are: mp4.")
	}
	return nil
}

// ValidateVideoSize rejects sizes above maxMB megabytes.
func ValidateVideoSize(size int64, maxMB int) error {
	if size < 0 {
		return apperrors.Validation("size_bytes", "Ensure this value is greater than or equal to 0.")
	}
	if size > int64(maxMB)*1024*1024 {
		return apperrors.Validation("video", fmt.Sprintf("The video size must be less than %d MB.", maxMB))
	}
	return nil
}
