package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"rentradar/config"
	"rentradar/models"
)

// UnratedScore marks properties whose description produced no usable
// scores. Kept distinct from 0 so the front end can sort them below rated
// listings instead of hiding them.
const UnratedScore = 13.0

const scoringSystemPrompt = `你是一位专业的房屋居住质量评估员，需要对房屋进行"分项打分"和"总评分"，标准如下：
1. 房屋质量 (0~10 分)：
   - 如果房屋缺少翻新、老旧或有明显缺陷，可给 3 分以下。
   - 普通装修或信息不足，可给 4~6 分。
   - 有翻新、材料优质或描述明确，可给 7~9 分。
   - 高端精装修或全新房，给 10 分。
2. 居住体验 (0~10 分)：
   - 噪音、空间狭小、采光差，可给 3 分以下。
   - 一般居住条件或描述不清，可给 4~6 分。
   - 宽敞、通风良好、配有空调等，可给 7~9 分。
   - 特别舒适、配置高级，可给 10 分。
3. 房屋内部配套设施 (0~10 分)：
   - 若只具备基本设施或缺少描述，可给 3~5 分。
   - 普通现代设施（空调、洗衣机、厨房电器等）可给 6~8 分。
   - 特别齐全、高端智能家居，可给 9~10 分。

总评分 (0~20)：
   = (房屋质量 + 居住体验 + 房屋内部配套设施) / 30 * 20

请一次性给出4组【独立的】打分结果，每组包括：
   房屋质量:X, 居住体验:Y, 房屋内配套:Z, 总评分:W
仅输出以上格式，每组一行，不可包含除数字、小数点、逗号、冒号、换行以外的文本。
示例：
房屋质量:6.5, 居住体验:7, 房屋内配套:5, 总评分:12.3
房屋质量:3, 居住体验:4, 房屋内配套:2.5, 总评分:6.3
房屋质量:9.5, 居住体验:8.5, 房屋内配套:9, 总评分:18
房屋质量:2, 居住体验:2.5, 房屋内配套:3, 总评分:5.5
`

const keywordSystemPromptEN = `从房源描述中提取简洁的关键词，包括以下10个维度：
1.安全性：门禁系统、安保设施等
2.重要家电：空调、烘干机等配置
3.厨房：有无灶台，灶台大小/类型，有无洗碗机、微波炉、烤箱等
4.装修状况：是否带家具，装修风格
5.储物空间：衣柜、储藏室，可容纳床尺寸评估等
6.洗手间：是否干湿分离、配备浴缸等
7.社区配套：健身房、游泳池等公共设施
8.购物：周边有无较大的买菜市场、药店等
9.户外空间：采光状态、景观特色，庭院或阳台私密性评估等
10.地理位置：临近商店、公园、餐厅等

用英文输出，描述中未提及的维度不要输出，关键词数量≤11个，不包含额外文字。`

const keywordSystemPromptCN = `从给定的房屋描述中提取关键词，关键词请用中文输出。要求关键词应包含房屋的位置、特征和可用设施。只输出关键词，用逗号分隔，不要包含其他文字。`

var totalScoreRegex = regexp.MustCompile(`总评分\s*:\s*(\d+(\.\d+)?)`)

// Scorer rates listings against an OpenAI-compatible chat endpoint. Each
// description is scored NumCalls times with ScoresPerCall independent
// verdicts per call, which smooths the sampling noise a single completion
// would carry.
type Scorer struct {
	client openai.Client
	cfg    config.ScoringConfig
}

func NewScorer(cfg config.ScoringConfig) *Scorer {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Scorer{client: openai.NewClient(opts...), cfg: cfg}
}

// ScoringStats summarises one scoring pass.
type ScoringStats struct {
	Scored    int
	Keyworded int
	Skipped   int
	Failed    int
}

// ScoreAll rates and keywords every property that has a description but no
// score yet. Work is spread over a small pool; the endpoint throttles hard,
// so the pool stays at cfg.Workers.
func (s *Scorer) ScoreAll(ctx context.Context, props []*models.Property) ScoringStats {
	var todo []*models.Property
	var stats ScoringStats
	for _, p := range props {
		if !p.HasDetail() {
			stats.Skipped++
			continue
		}
		if p.AverageScore != 0 && p.Keywords != "" && p.Keywords != "N/A" {
			stats.Skipped++
			continue
		}
		todo = append(todo, p)
	}
	if len(todo) == 0 {
		log.Printf("Scoring: nothing to do")
		return stats
	}
	log.Printf("Scoring %d properties with %s", len(todo), s.cfg.Model)

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan *models.Property)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				scored, keyworded, err := s.scoreOne(ctx, p)
				mu.Lock()
				if err != nil {
					stats.Failed++
				}
				if scored {
					stats.Scored++
				}
				if keyworded {
					stats.Keyworded++
				}
				mu.Unlock()
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

	log.Printf("Scoring done: %d scored, %d keyworded, %d failed", stats.Scored, stats.Keyworded, stats.Failed)
	return stats
}

func (s *Scorer) scoreOne(ctx context.Context, p *models.Property) (scored, keyworded bool, err error) {
	if p.AverageScore == 0 {
		scores := s.collectScores(ctx, p.DescriptionEN)
		p.Scores = scores
		p.AverageScore = AverageScore(scores)
		scored = true
	}

	if p.Keywords == "" || p.Keywords == "N/A" {
		kwEN, kwErr := s.complete(ctx, keywordSystemPromptEN, p.DescriptionEN)
		if kwErr != nil {
			log.Printf("Keyword extraction failed (%s): %v", p.HouseID, kwErr)
			p.Keywords = "N/A"
			return scored, false, kwErr
		}
		p.Keywords = strings.TrimSpace(kwEN)

		kwCN, cnErr := s.complete(ctx, keywordSystemPromptCN, p.DescriptionEN)
		if cnErr != nil {
			log.Printf("Chinese keyword extraction failed (%s): %v", p.HouseID, cnErr)
			p.DescriptionCN = "N/A"
		} else {
			p.DescriptionCN = strings.TrimSpace(kwCN)
		}
		keyworded = true
	}
	return scored, keyworded, nil
}

// collectScores runs the configured number of scoring calls and flattens
// the per-call verdicts into one slice.
func (s *Scorer) collectScores(ctx context.Context, description string) []float64 {
	all := make([]float64, 0, s.cfg.NumCalls*s.cfg.ScoresPerCall)
	for call := 0; call < s.cfg.NumCalls; call++ {
		content, err := s.complete(ctx, scoringSystemPrompt, s.buildScoringPrompt(description))
		if err != nil {
			log.Printf("Scoring call failed: %v", err)
			all = append(all, make([]float64, s.cfg.ScoresPerCall)...)
			continue
		}
		all = append(all, ParseScoreBatch(content, s.cfg.ScoresPerCall)...)
	}
	return all
}

func (s *Scorer) buildScoringPrompt(description string) string {
	return "根据以下房源描述，对房屋质量、居住体验、房屋内部配套设施三个维度分别打 0~10 分，并给出总评分（0~20分）。\n" +
		"请参考系统提示中的具体扣分/加分建议。\n" +
		fmt.Sprintf("房源描述：%s\n", description) +
		fmt.Sprintf("请严格按系统提示输出 %d 组打分，每组一行，不要输出任何多余的文字。", s.cfg.ScoresPerCall)
}

// complete issues one chat completion with exponential backoff. Three
// attempts cover the endpoint's transient 429s without stalling a sweep.
func (s *Scorer) complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: openai.ChatModel(s.cfg.Model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Temperature: openai.Float(s.cfg.Temperature),
			MaxTokens:   openai.Int(int64(s.cfg.MaxTokens)),
			TopP:        openai.Float(0.9),
		})
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("empty completion")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

// ParseScoreBatch reads one completion's verdicts. The model must return
// exactly want lines each carrying a 总评分 in [0, 20]; a malformed batch
// is zeroed wholesale rather than half-trusted.
func ParseScoreBatch(text string, want int) []float64 {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != want {
		return make([]float64, want)
	}

	scores := make([]float64, 0, want)
	for _, line := range lines {
		m := totalScoreRegex.FindStringSubmatch(line)
		if m == nil {
			scores = append(scores, 0)
			continue
		}
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil || val < 0 || val > 20 {
			scores = append(scores, 0)
			continue
		}
		scores = append(scores, val)
	}
	return scores
}

// AverageScore reduces a score slice to the stored rating: the mean over
// all verdicts rounded to one decimal, or UnratedScore when every verdict
// came back zero.
func AverageScore(scores []float64) float64 {
	if len(scores) == 0 {
		return UnratedScore
	}
	sum := 0.0
	for _, v := range scores {
		sum += v
	}
	if sum == 0 {
		return UnratedScore
	}
	return math.Round(sum/float64(len(scores))*10) / 10
}
