package tools

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ajvoice/aj-server/pkg/assistant"
	"github.com/goccy/go-json"
)

const defaultAgendaTopics = "Introduction, Updates, Discussion, Action Items, Next Steps"

func (d *Deps) agendaTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "create_agenda",
			Description: "Create a professional meeting agenda with time allocations.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"meeting_title": {"type": "string", "description": "Title of the meeting"},
					"duration_minutes": {"type": "integer", "description": "Total duration in minutes, default 60"},
					"topics": {"type": "string", "description": "Comma-separated list of topics to discuss"}
				},
				"required": ["meeting_title"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				MeetingTitle    string `json:"meeting_title"`
				DurationMinutes int    `json:"duration_minutes"`
				Topics          string `json:"topics"`
			}{DurationMinutes: 60}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return buildAgenda(in.MeetingTitle, in.DurationMinutes, in.Topics), nil
		},
	}
}

// buildAgenda reserves five minutes for opening and closing, splits the
// rest evenly over the topics and gives the remainder to the closing.
func buildAgenda(title string, durationMinutes int, topics string) string {
	if title == "" {
		return "Please provide a meeting title."
	}
	if durationMinutes <= 0 {
		durationMinutes = 60
	}
	if topics == "" {
		topics = defaultAgendaTopics
	}

	var topicList []string
	for _, topic := range strings.Split(topics, ",") {
		if t := strings.TrimSpace(topic); t != "" {
			topicList = append(topicList, t)
		}
	}
	if len(topicList) == 0 {
		topicList = strings.Split(defaultAgendaTopics, ", ")
	}

	openingTime := 5
	closingTime := 5
	availableTime := durationMinutes - (openingTime + closingTime)

	timePerTopic := availableTime / len(topicList)
	if timePerTopic < 1 {
		timePerTopic = 1
	}
	closingTime += availableTime - timePerTopic*len(topicList)

	var agenda strings.Builder
	agenda.WriteString(fmt.Sprintf("# Meeting Agenda: %s\nDuration: %d minutes\n\n", title, durationMinutes))
	agenda.WriteString("## Opening (5 minutes)\n- Welcome and introduction\n- Review of agenda and meeting objectives\n\n")

	for i, topic := range topicList {
		agenda.WriteString(fmt.Sprintf("## %s (%d minutes)\n", topic, timePerTopic))
		switch {
		case i == 0:
			agenda.WriteString("- Presentation of key points\n- Initial feedback\n\n")
		case i == len(topicList)-1:
			agenda.WriteString("- Discussion of final items\n- Summary of decisions\n\n")
		default:
			agenda.WriteString("- Update and status report\n- Discussion and decisions\n\n")
		}
	}

	agenda.WriteString(fmt.Sprintf("## Closing (%d minutes)\n- Review of action items and responsibilities\n- Next meeting scheduling\n- Adjournment", closingTime))
	return agenda.String()
}

func (d *Deps) roiTool() *Tool {
	return &Tool{
		Definition: &assistant.ToolDefinition{
			Name:        "calculate_roi",
			Description: "Calculate Return on Investment (ROI) with annualized returns.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"initial_investment": {"type": "number", "description": "Initial investment amount"},
					"final_value": {"type": "number", "description": "Final value of the investment"},
					"time_period_years": {"type": "number", "description": "Time period in years, default 1.0"}
				},
				"required": ["initial_investment", "final_value"]
			}`),
		},
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in := struct {
				InitialInvestment float64 `json:"initial_investment"`
				FinalValue        float64 `json:"final_value"`
				TimePeriodYears   float64 `json:"time_period_years"`
			}{TimePeriodYears: 1.0}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", err
			}
			return calculateROI(in.InitialInvestment, in.FinalValue, in.TimePeriodYears), nil
		},
	}
}

func calculateROI(initialInvestment, finalValue, timePeriodYears float64) string {
	if initialInvestment <= 0 {
		return "Initial investment must be greater than zero."
	}
	if timePeriodYears <= 0 {
		return "Time period must be greater than zero."
	}

	netReturn := finalValue - initialInvestment
	roi := netReturn / initialInvestment * 100

	result := fmt.Sprintf(`ROI Analysis:
Initial Investment: $%.2f
Final Value: $%.2f
Net Return: $%.2f
Time Period: %.2f years

ROI: %.2f%%`, initialInvestment, finalValue, netReturn, timePeriodYears, roi)

	if timePeriodYears != 1.0 {
		annualized := (math.Pow(finalValue/initialInvestment, 1/timePeriodYears) - 1) * 100
		if !math.IsNaN(annualized) && !math.IsInf(annualized, 0) {
			result += fmt.Sprintf("\nAnnualized ROI: %.2f%%", annualized)
		}
	}
	return result
}
