package attribution

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/requestctx"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

// ContextKey is the gin context key holding the attributed affiliate id.
const ContextKey = "affiliate_id"

// RefParam is the query parameter carrying a referral code.
const RefParam = "ref"

// Middleware attributes the request to an affiliate. A resolvable ?ref code
// wins and overwrites the cookie; otherwise a cookie is revalidated and
// cleared when its affiliate is no longer active. A failed lookup leaves the
// cookie in place.
func Middleware(resolver AffiliateResolver, store *CookieStore, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("attribution")
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if code := c.Query(RefParam); code != "" {
			if affiliate, ok := resolver.Resolve(ctx, code); ok {
				if err := store.Attach(c.Writer, affiliate.ID); err != nil {
					logger.FromContextOr(ctx, log).Error("Failed to write attribution cookie", zap.Error(err))
				}
				setAffiliate(c, affiliate.ID)
				c.Next()
				return
			}
		}

		if affiliateID, ok := store.Read(c.Request); ok {
			switch _, validity := resolver.Revalidate(ctx, affiliateID); validity {
			case Active:
				setAffiliate(c, affiliateID)
			case Inactive:
				logger.FromContextOr(ctx, log).Debug("Clearing attribution for inactive affiliate",
					zap.String("affiliate_id", affiliateID))
				store.Clear(c.Writer)
			default:
				// Cookie stays; this request goes unattributed.
				logger.FromContextOr(ctx, log).Warn("Attribution not revalidated, keeping cookie",
					zap.String("affiliate_id", affiliateID))
			}
		}

		c.Next()
	}
}

func setAffiliate(c *gin.Context, affiliateID string) {
	c.Set(ContextKey, affiliateID)
	c.Request = c.Request.WithContext(requestctx.WithAffiliateID(c.Request.Context(), affiliateID))
}
