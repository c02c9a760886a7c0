package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"schoolsite/internal/auth"
	"schoolsite/internal/middleware"
	"schoolsite/internal/models"
	"schoolsite/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const renderCacheTTL = 10 * time.Minute

type BoardHandler struct {
	db    *gorm.DB
	cache *utils.TTLCache
	log   *zap.Logger
}

func NewBoardHandler(db *gorm.DB, cache *utils.TTLCache, log *zap.Logger) *BoardHandler {
	return &BoardHandler{db: db, cache: cache, log: log}
}

// authorView is what other members may see of an author.
type authorView struct {
	ID       uint        `json:"id"`
	Username string      `json:"username"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
}

func authorOf(u models.User) authorView {
	return authorView{ID: u.ID, Username: u.Username, Name: u.Name, Role: u.Role}
}

type postView struct {
	models.Post
	Author authorView `json:"author"`
}

type commentView struct {
	models.Comment
	Author      authorView    `json:"author"`
	ContentHTML template.HTML `json:"contentHtml"`
}

type postRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type commentRequest struct {
	Content  string `json:"content" binding:"required,max=2000"`
	ParentID *uint  `json:"parentId"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes user input match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// render converts markdown once per cache key.
func (h *BoardHandler) render(key, source string) template.HTML {
	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			if out, ok := v.(template.HTML); ok {
				return out
			}
		}
	}
	out := utils.RenderMarkdown(source)
	if h.cache != nil {
		h.cache.Set(key, out, renderCacheTTL)
	}
	return out
}

func postHTMLKey(p *models.Post) string {
	return fmt.Sprintf("board:post:html:%d:%d", p.ID, p.UpdatedAt.UnixNano())
}

func commentHTMLKey(id uint) string {
	return fmt.Sprintf("board:comment:html:%d", id)
}

// fillCounts 게시글별 댓글 수와 좋아요 수를 한 번에 채운다
func (h *BoardHandler) fillCounts(tx *gorm.DB, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type countResult struct {
		PostID uint
		Count  int
	}
	count := func(model any) (map[uint]int, error) {
		var results []countResult
		err := tx.Model(model).
			Select("post_id, COUNT(*) as count").
			Where("post_id IN ?", postIDs).
			Group("post_id").
			Scan(&results).Error
		m := make(map[uint]int, len(results))
		for _, r := range results {
			m[r.PostID] = r.Count
		}
		return m, err
	}

	comments, err := count(&models.Comment{})
	if err != nil {
		return err
	}
	reactions, err := count(&models.Reaction{})
	if err != nil {
		return err
	}
	for i := range posts {
		posts[i].CommentCount = comments[posts[i].ID]
		posts[i].ReactionCount = reactions[posts[i].ID]
	}
	return nil
}

func (h *BoardHandler) ListPosts(c *gin.Context) {
	p := pageParams(c)
	tx := h.db.WithContext(c.Request.Context())

	q := tx.Model(&models.Post{})
	if query := strings.TrimSpace(c.Query("q")); query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, h.log, err)
		return
	}

	var posts []models.Post
	if err := q.Preload("Author").
		Order("created_at DESC, id DESC").
		Limit(p.Size).
		Offset(p.offset()).
		Find(&posts).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	if err := h.fillCounts(tx, posts); err != nil {
		respondError(c, h.log, err)
		return
	}

	views := make([]postView, len(posts))
	for i, post := range posts {
		views[i] = postView{Post: post, Author: authorOf(post.Author)}
	}
	respond(c, http.StatusOK, pageOf(views, p, total))
}

func (h *BoardHandler) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tx := h.db.WithContext(c.Request.Context())

	var post models.Post
	if err := tx.Preload("Author").First(&post, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	tx.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("views", gorm.Expr("views + 1"))
	post.Views++

	var comments []models.Comment
	if err := tx.Preload("Author").Where("post_id = ?", post.ID).Order("created_at ASC, id ASC").Find(&comments).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	commentViews := make([]commentView, len(comments))
	for i, com := range comments {
		commentViews[i] = commentView{
			Comment:     com,
			Author:      authorOf(com.Author),
			ContentHTML: h.render(commentHTMLKey(com.ID), com.Content),
		}
	}

	posts := []models.Post{post}
	if err := h.fillCounts(tx, posts); err != nil {
		respondError(c, h.log, err)
		return
	}
	post = posts[0]

	var liked int64
	tx.Model(&models.Reaction{}).
		Where("post_id = ? AND user_id = ?", post.ID, middleware.CurrentSession(c).UserID()).
		Count(&liked)

	respond(c, http.StatusOK, gin.H{
		"post":        postView{Post: post, Author: authorOf(post.Author)},
		"contentHtml": h.render(postHTMLKey(&post), post.Content),
		"comments":    commentViews,
		"liked":       liked > 0,
	})
}

func (h *BoardHandler) CreatePost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	title, content, msg := postFields(req, "", "")
	if msg != "" {
		badRequest(c, msg)
		return
	}

	post := models.Post{
		AuthorID: middleware.CurrentSession(c).UserID(),
		Title:    title,
		Content:  content,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&post).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, post)
}

// postFields applies a partial update over the current values.
func postFields(req postRequest, title, content string) (string, string, string) {
	if req.Title != nil {
		title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		content = *req.Content
	}
	switch {
	case title == "":
		return "", "", "제목을 입력해 주세요."
	case len([]rune(title)) > 200:
		return "", "", "제목은 200자 이하여야 합니다."
	case strings.TrimSpace(content) == "":
		return "", "", "내용을 입력해 주세요."
	}
	return title, content, ""
}

// loadOwnedPost loads a post and checks the caller may change it.
func (h *BoardHandler) loadOwnedPost(c *gin.Context) (*models.Post, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var post models.Post
	if err := h.db.WithContext(c.Request.Context()).First(&post, id).Error; err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	if !auth.CanModifyContent(middleware.CurrentSession(c), post.AuthorID) {
		forbidden(c)
		return nil, false
	}
	return &post, true
}

func (h *BoardHandler) UpdatePost(c *gin.Context) {
	post, ok := h.loadOwnedPost(c)
	if !ok {
		return
	}
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	title, content, msg := postFields(req, post.Title, post.Content)
	if msg != "" {
		badRequest(c, msg)
		return
	}

	if h.cache != nil {
		h.cache.Delete(postHTMLKey(post))
	}
	post.Title, post.Content = title, content
	if err := h.db.WithContext(c.Request.Context()).Model(post).
		Updates(map[string]any{"title": title, "content": content}).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, post)
}

func (h *BoardHandler) DeletePost(c *gin.Context) {
	post, ok := h.loadOwnedPost(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(post).Error
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if h.cache != nil {
		h.cache.Delete(postHTMLKey(post))
	}
	respond(c, http.StatusOK, gin.H{"message": "삭제되었습니다."})
}

func (h *BoardHandler) CreateComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		badRequest(c, "댓글 내용을 입력해 주세요.")
		return
	}
	tx := h.db.WithContext(c.Request.Context())
	actorID := middleware.CurrentSession(c).UserID()

	var post models.Post
	if err := tx.First(&post, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}

	var parent *models.Comment
	if req.ParentID != nil {
		parent = &models.Comment{}
		if err := tx.Where("id = ? AND post_id = ?", *req.ParentID, post.ID).First(parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				badRequest(c, "답글 대상 댓글이 없습니다.")
				return
			}
			respondError(c, h.log, err)
			return
		}
	}

	comment := models.Comment{
		PostID:   post.ID,
		AuthorID: actorID,
		ParentID: req.ParentID,
		Content:  req.Content,
	}
	if err := tx.Create(&comment).Error; err != nil {
		respondError(c, h.log, err)
		return
	}

	h.notifyComment(tx, &post, parent, &comment)
	respond(c, http.StatusCreated, comment)
}

// notifyComment 답글이면 원 댓글 작성자에게, 아니면 글 작성자에게 알림
func (h *BoardHandler) notifyComment(tx *gorm.DB, post *models.Post, parent *models.Comment, comment *models.Comment) {
	actorID := comment.AuthorID
	n := models.Notification{
		ActorID: &actorID,
		Link:    fmt.Sprintf("/board/posts/%d#comment-%d", post.ID, comment.ID),
	}
	if parent != nil {
		n.UserID = parent.AuthorID
		n.Type = models.NotificationTypeReplyComment
		n.Message = fmt.Sprintf("「%s」 글의 내 댓글에 답글이 달렸습니다.", post.Title)
	} else {
		n.UserID = post.AuthorID
		n.Type = models.NotificationTypeCommentPost
		n.Message = fmt.Sprintf("「%s」 글에 새 댓글이 달렸습니다.", post.Title)
	}
	// 본인 글, 본인 댓글에는 알리지 않음
	if n.UserID == actorID {
		return
	}
	if err := tx.Create(&n).Error; err != nil {
		h.log.Warn("create comment notification failed", zap.Uint("post_id", post.ID), zap.Error(err))
	}
}

func (h *BoardHandler) DeleteComment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	tx := h.db.WithContext(c.Request.Context())

	var comment models.Comment
	if err := tx.First(&comment, id).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	if !auth.CanModifyContent(middleware.CurrentSession(c), comment.AuthorID) {
		forbidden(c)
		return
	}

	if err := tx.Where("id = ? OR parent_id = ?", comment.ID, comment.ID).Delete(&models.Comment{}).Error; err != nil {
		respondError(c, h.log, err)
		return
	}
	if h.cache != nil {
		h.cache.Delete(commentHTMLKey(comment.ID))
	}
	respond(c, http.StatusOK, gin.H{"message": "삭제되었습니다."})
}

// ToggleReaction 좋아요 토글
func (h *BoardHandler) ToggleReaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	userID := middleware.CurrentSession(c).UserID()

	var liked bool
	var count int64
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id").First(&post, id).Error; err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, post.ID).Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Reaction{UserID: userID, PostID: post.ID}).Error; err != nil {
				return err
			}
			liked = true
		}
		return tx.Model(&models.Reaction{}).Where("post_id = ?", post.ID).Count(&count).Error
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"liked": liked, "count": count})
}
