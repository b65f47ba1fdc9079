package services

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/projectdiscovery/ratelimit"
	"googlemaps.github.io/maps"

	"rentradar/config"
	"rentradar/models"
)

// drivingPenalty inflates a driving fallback to approximate transit.
// Students ride buses and trains, not cars; raw driving times would make
// car-only suburbs look far better connected than they are.
const drivingPenalty = 1.5

// routeClient is the slice of the Maps API the planner needs.
type routeClient interface {
	TransitMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error)
	DrivingMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error)
}

// googleRoutes implements routeClient over the official Maps client.
type googleRoutes struct {
	client *maps.Client
}

func newGoogleRoutes(apiKey string) (*googleRoutes, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &googleRoutes{client: client}, nil
}

func (g *googleRoutes) TransitMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error) {
	routes, _, err := g.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:        origin,
		Destination:   destination,
		Mode:          maps.TravelModeTransit,
		DepartureTime: strconv.FormatInt(departure.Unix(), 10),
	})
	if err != nil {
		return 0, err
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, nil
	}
	minutes := routes[0].Legs[0].Duration.Minutes()
	return int(minutes + 0.5), nil
}

func (g *googleRoutes) DrivingMinutes(ctx context.Context, origin, destination string, departure time.Time) (int, error) {
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:       []string{origin},
		Destinations:  []string{destination},
		Mode:          maps.TravelModeDriving,
		DepartureTime: strconv.FormatInt(departure.Unix(), 10),
		TrafficModel:  maps.TrafficModelBestGuess,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, nil
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, nil
	}
	return int(el.Duration.Minutes() + 0.5), nil
}

// CommutePlanner fills commuteTime_{university} for each property using
// transit directions at tomorrow's morning peak, with a penalised driving
// estimate as fallback. One shared limiter paces every worker against the
// Maps quota.
type CommutePlanner struct {
	routes  routeClient
	limiter *ratelimit.Limiter
	cfg     config.CommuteConfig

	mu   sync.Mutex
	memo map[string]int
}

func NewCommutePlanner(ctx context.Context, cfg config.CommuteConfig) (*CommutePlanner, error) {
	routes, err := newGoogleRoutes(cfg.APIKey)
	if err != nil {
		return nil, err
	}
	return &CommutePlanner{
		routes:  routes,
		limiter: ratelimit.New(ctx, 1, cfg.Delay),
		cfg:     cfg,
		memo:    make(map[string]int),
	}, nil
}

// Stop releases the rate limiter.
func (c *CommutePlanner) Stop() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

// CommuteOrigin renders the geocodable form of a property's address. The
// portals' hyphenated slugs geocode poorly, so hyphens revert to spaces.
func CommuteOrigin(p *models.Property) string {
	line1 := strings.TrimSpace(strings.ReplaceAll(p.AddressLine1, "-", " "))
	line2 := strings.TrimSpace(strings.ReplaceAll(p.AddressLine2, "-", " "))

	switch {
	case line1 != "" && line2 != "":
		return fmt.Sprintf("%s, %s, Australia", line1, line2)
	case line2 != "":
		return fmt.Sprintf("%s, Australia", line2)
	case line1 != "":
		return fmt.Sprintf("%s, NSW, Australia", line1)
	}
	return ""
}

// departure is tomorrow's 08:30 local, the arrival window students plan
// around.
func departure() time.Time {
	now := time.Now()
	morning := time.Date(now.Year(), now.Month(), now.Day(), 8, 30, 0, 0, now.Location())
	return morning.AddDate(0, 0, 1)
}

// ComputeAll fills the commute time toward one university for every
// property that does not already have it. Returns the number computed.
func (c *CommutePlanner) ComputeAll(ctx context.Context, props []*models.Property, university string) int {
	destination, ok := models.SchoolAddresses[university]
	if !ok {
		log.Printf("Unknown university for commute: %s", university)
		return 0
	}

	var todo []*models.Property
	for _, p := range props {
		if minutes, have := p.CommuteFor(university); have && minutes > 0 {
			continue
		}
		todo = append(todo, p)
	}
	if len(todo) == 0 {
		log.Printf("Commute [%s]: nothing to compute", university)
		return 0
	}
	log.Printf("Commute [%s]: computing %d properties", university, len(todo))

	workers := c.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	computed := 0
	jobs := make(chan *models.Property)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				minutes := c.commuteFor(ctx, p, university, destination)
				if minutes > 0 {
					p.SetCommute(university, minutes)
					mu.Lock()
					computed++
					mu.Unlock()
				}
			}
		}()
	}

	for _, p := range todo {
		if ctx.Err() != nil {
			break
		}
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	log.Printf("Commute [%s]: %d/%d computed", university, computed, len(todo))
	return computed
}

func (c *CommutePlanner) commuteFor(ctx context.Context, p *models.Property, university, destination string) int {
	memoKey := p.HouseID + "|" + university

	c.mu.Lock()
	if minutes, ok := c.memo[memoKey]; ok {
		c.mu.Unlock()
		return minutes
	}
	c.mu.Unlock()

	origin := CommuteOrigin(p)
	if origin == "" {
		return 0
	}

	minutes := c.lookup(ctx, origin, destination)

	c.mu.Lock()
	c.memo[memoKey] = minutes
	c.mu.Unlock()
	return minutes
}

func (c *CommutePlanner) lookup(ctx context.Context, origin, destination string) int {
	depart := departure()

	c.limiter.Take()
	minutes, err := c.routes.TransitMinutes(ctx, origin, destination, depart)
	if err != nil {
		log.Printf("Transit lookup failed (%s): %v", origin, err)
	}
	if minutes > 0 {
		return minutes
	}

	c.limiter.Take()
	driving, err := c.routes.DrivingMinutes(ctx, origin, destination, depart)
	if err != nil {
		log.Printf("Driving lookup failed (%s): %v", origin, err)
		return 0
	}
	if driving == 0 {
		return 0
	}
	return int(float64(driving)*drivingPenalty + 0.5)
}
