package notification

import "beacon/models"

// titleTemplates is the default title per category, used when a producer sends none.
var titleTemplates = map[models.Category]string{
	models.CategoryInfo:    "Heads up",
	models.CategorySuccess: "Done",
	models.CategoryWarning: "Warning",
	models.CategoryError:   "Something went wrong",
	models.CategoryMessage: "New message",
	models.CategoryMention: "You were mentioned",
}

// DefaultTitle returns the template title for a category.
func DefaultTitle(c models.Category) string {
	if t, ok := titleTemplates[c]; ok {
		return t
	}
	return "Notification"
}

// Builder assembles a CreateRequest for one category. Producers use it instead of
// hand-filling the struct:
//
//	req := notification.Mention(userID, "Dana mentioned you in #ward-3").
//		About("chat", convID).By(actorID).Build()
type Builder struct {
	req models.CreateRequest
}

func New(userID string, category models.Category, message string) *Builder {
	return &Builder{req: models.CreateRequest{
		UserID:   userID,
		Category: category,
		Message:  message,
		Priority: models.PriorityNormal,
	}}
}

func Info(userID, message string) *Builder    { return New(userID, models.CategoryInfo, message) }
func Success(userID, message string) *Builder { return New(userID, models.CategorySuccess, message) }
func Warning(userID, message string) *Builder { return New(userID, models.CategoryWarning, message) }
func Message(userID, message string) *Builder { return New(userID, models.CategoryMessage, message) }

func Error(userID, message string) *Builder {
	return New(userID, models.CategoryError, message).Priority(models.PriorityHigh)
}

func Mention(userID, message string) *Builder {
	return New(userID, models.CategoryMention, message).Priority(models.PriorityHigh)
}

func (b *Builder) Title(title string) *Builder {
	b.req.Title = title
	return b
}

func (b *Builder) Priority(p models.Priority) *Builder {
	b.req.Priority = p
	return b
}

// About attaches the entity the notification refers to.
func (b *Builder) About(entityType, entityID string) *Builder {
	b.req.EntityType = entityType
	b.req.EntityID = entityID
	return b
}

func (b *Builder) By(actor string) *Builder {
	b.req.CreatedBy = actor
	return b
}

// ClientID sets the idempotency key used when the request is replayed.
func (b *Builder) ClientID(id string) *Builder {
	b.req.ClientID = id
	return b
}

func (b *Builder) Build() models.CreateRequest {
	req := b.req
	if req.Title == "" {
		req.Title = DefaultTitle(req.Category)
	}
	return req
}
