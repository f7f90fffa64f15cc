package cache

import "fmt"

// Key builders shared by the services that read and invalidate them.

const (
	KeyCoursesAll        = "courses:all"
	KeyArticlesPublished = "articles:published"
	KeyCommentsPublic    = "comments:public"
	KeyBooksInStock      = "books:stock"
)

func KeyCoursesStudent(userID int64) string { return fmt.Sprintf("courses:student:%d", userID) }

func KeyEnrollmentsUser(userID int64) string { return fmt.Sprintf("enrollments:user:%d", userID) }

func KeyVideosCourseUser(courseID, userID int64) string {
	return fmt.Sprintf("videos:course:%d:user:%d", courseID, userID)
}

// KeyVideosCourseAll matches every per-user video list of a course.
func KeyVideosCourseAll(courseID int64) string {
	return fmt.Sprintf("videos:course:%d:user:*", courseID)
}

func KeyArticlesUser(userID int64) string { return fmt.Sprintf("articles:user:%d", userID) }

func KeyCommentsUser(userID int64) string { return fmt.Sprintf("comments:user:%d", userID) }

// KeyCommentsUserAll matches every per-user comment list.
const KeyCommentsUserAll = "comments:user:*"

func KeyOrdersUser(userID int64) string { return fmt.Sprintf("orders:user:%d", userID) }

func KeyChatRoomsUser(userID int64) string { return fmt.Sprintf("chat:rooms:user:%d", userID) }

func KeyMessagesRoomUser(roomID, userID int64) string {
	return fmt.Sprintf("messages:room:%d:user:%d", roomID, userID)
}

// KeyMessagesRoomAll matches every per-user message list of a room.
func KeyMessagesRoomAll(roomID int64) string {
	return fmt.Sprintf("messages:room:%d:user:*", roomID)
}

func KeyShortLinkStats(code string) string { return "shortlink:stats:" + code }

func KeyAuthUser(userID int64) string { return fmt.Sprintf("auth:user:%d", userID) }

// KeyReport names a cached admin report.
func KeyReport(name string) string { return "report:" + name }
