// Package bot is the Telegram front-end. It parses commands, maps Telegram
// users to derived governance identities and renders results. It checks
// Telegram admin status before mutating commands as a courtesy, but the
// governance core re-verifies every caller against the group's own admin
// set regardless.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dao-governance/client"
	"dao-governance/models"
	"dao-governance/service"
)

const helpText = `DAO governance commands:
/login - create or access your account
/account - show your account information
/creategroup Name | Description [| weighted] - create this chat's DAO group
/addmember <telegram_id> - add a member (or reply to their message)
/removemember <telegram_id> - remove a member (or reply)
/promoteadmin <telegram_id> - grant admin rights (or reply)
/listgroups - list all DAO groups
/createproposal Title | Description | Choice1,Choice2,... | hours
/listproposals - list this group's proposals
/vote <proposal_id> <choice_number> - cast your vote
/results <proposal_id> - show proposal results
/stats - deployment statistics`

func Start(api *tgbotapi.BotAPI, svc *service.GovernanceService, queries *client.Client) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		if update.Message.IsCommand() {
			handleCommand(api, svc, queries, update.Message)
		} else if update.Message.Chat.IsPrivate() {
			reply(api, update.Message.Chat.ID, "Use /help for the command list")
		}
	}
}

func handleCommand(api *tgbotapi.BotAPI, svc *service.GovernanceService, queries *client.Client, msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var text string
	switch msg.Command() {
	case "start":
		text = "Welcome to the DAO governance bot!\nUse /login to create your account and /help for commands."
	case "help":
		text = helpText
	case "login":
		text = handleLogin(ctx, svc, msg)
	case "account":
		text = handleAccount(ctx, queries, msg)
	case "creategroup":
		text = handleCreateGroup(ctx, api, svc, msg)
	case "addmember":
		text = handleMembership(ctx, api, svc, queries, msg, "add")
	case "removemember":
		text = handleMembership(ctx, api, svc, queries, msg, "remove")
	case "promoteadmin":
		text = handleMembership(ctx, api, svc, queries, msg, "promote")
	case "listgroups":
		text = handleListGroups(ctx, queries)
	case "createproposal":
		text = handleCreateProposal(ctx, api, svc, msg)
	case "listproposals":
		text = handleListProposals(ctx, queries, msg)
	case "vote":
		text = handleVote(ctx, svc, msg)
	case "results":
		text = handleResults(ctx, svc, msg)
	case "stats":
		text = handleStats(ctx, svc)
	default:
		text = "Unknown command. Use /help for the command list."
	}

	reply(api, msg.Chat.ID, text)
}

func handleLogin(ctx context.Context, svc *service.GovernanceService, msg *tgbotapi.Message) string {
	if msg.From == nil {
		return "Unable to identify user."
	}
	account, err := svc.LoginOrCreateAccount(ctx, externalID(msg.From), displayName(msg.From))
	if err != nil {
		return "Failed to access your account: " + userMessage(err)
	}
	return fmt.Sprintf("Account ready!\nName: %s\nAddress: %s\nYou can now participate in DAO voting.",
		account.DisplayName, account.PublicKey)
}

func handleAccount(ctx context.Context, queries *client.Client, msg *tgbotapi.Message) string {
	if msg.From == nil {
		return "Unable to identify user."
	}
	account, err := queries.GetAccount(ctx, externalID(msg.From))
	if errors.Is(err, models.ErrAccountNotFound) {
		return "You don't have an account yet. Use /login to create one."
	}
	if err != nil {
		return "Failed to load your account: " + userMessage(err)
	}
	created := time.Unix(account.CreatedAt, 0).UTC().Format("2006-01-02 15:04 UTC")
	return fmt.Sprintf("Your account:\nName: %s\nAddress: %s\nCreated: %s",
		account.DisplayName, account.PublicKey, created)
}

func handleCreateGroup(ctx context.Context, api *tgbotapi.BotAPI, svc *service.GovernanceService, msg *tgbotapi.Message) string {
	if !isChatAdmin(api, msg) {
		return "Only chat admins can create DAO groups."
	}
	parts := splitArgs(msg.CommandArguments())
	if len(parts) < 2 {
		return "Usage: /creategroup Name | Description [| weighted]"
	}
	mode := models.ModeOneMemberOneVote
	if len(parts) >= 3 && strings.EqualFold(parts[2], "weighted") {
		mode = models.ModeTokenWeighted
	}

	caller, err := callerKey(ctx, svc, msg)
	if err != nil {
		return userMessage(err)
	}
	group, err := svc.CreateGroup(ctx, caller, chatGroupID(msg.Chat.ID), parts[0], parts[1], mode)
	if err != nil {
		return "Failed to create group: " + userMessage(err)
	}
	return fmt.Sprintf("DAO group created!\nName: %s\nDescription: %s\nVoting mode: %s",
		group.Name, group.Description, group.VotingMode)
}

func handleMembership(ctx context.Context, api *tgbotapi.BotAPI, svc *service.GovernanceService, queries *client.Client, msg *tgbotapi.Message, op string) string {
	if !isChatAdmin(api, msg) {
		return "Only chat admins can manage members."
	}
	target, targetName, err := targetUser(msg)
	if err != nil {
		return err.Error()
	}

	caller, err := callerKey(ctx, svc, msg)
	if err != nil {
		return userMessage(err)
	}
	member, err := memberKey(ctx, svc, queries, op, target, targetName)
	if err != nil {
		return "Failed to resolve member account: " + userMessage(err)
	}

	groupID := chatGroupID(msg.Chat.ID)
	switch op {
	case "add":
		_, err = svc.AddMember(ctx, caller, groupID, member)
		if err == nil {
			return fmt.Sprintf("Member %s added.", member)
		}
	case "remove":
		_, err = svc.RemoveMember(ctx, caller, groupID, member)
		if err == nil {
			return fmt.Sprintf("Member %s removed.", member)
		}
	case "promote":
		_, err = svc.PromoteAdmin(ctx, caller, groupID, member)
		if err == nil {
			return fmt.Sprintf("Member %s is now an admin.", member)
		}
	}
	return "Failed: " + userMessage(err)
}

// memberKey resolves the managed member's key. Add and promote bind the
// target's account on demand; removal only looks up existing state, so
// removing someone never creates an account for them.
func memberKey(ctx context.Context, svc *service.GovernanceService, queries *client.Client, op, target, targetName string) (models.PublicKey, error) {
	if op == "remove" {
		account, err := queries.GetAccount(ctx, target)
		if err != nil {
			return models.PublicKey{}, err
		}
		return account.PublicKey, nil
	}
	account, err := svc.LoginOrCreateAccount(ctx, target, targetName)
	if err != nil {
		return models.PublicKey{}, err
	}
	return account.PublicKey, nil
}

func handleListGroups(ctx context.Context, queries *client.Client) string {
	groups, itemErrs, err := queries.ListGroups(ctx)
	if err != nil {
		return "Failed to fetch groups: " + userMessage(err)
	}
	if len(groups) == 0 && len(itemErrs) == 0 {
		return "No DAO groups found."
	}

	var sb strings.Builder
	sb.WriteString("DAO groups:\n")
	for i, g := range groups {
		fmt.Fprintf(&sb, "%d. %s (%s) - %d members, %d proposals\n",
			i+1, g.Name, g.VotingMode, len(g.Members), len(g.Proposals))
	}
	if len(itemErrs) > 0 {
		fmt.Fprintf(&sb, "(%d group records could not be read)", len(itemErrs))
	}
	return sb.String()
}

func handleCreateProposal(ctx context.Context, api *tgbotapi.BotAPI, svc *service.GovernanceService, msg *tgbotapi.Message) string {
	if !isChatAdmin(api, msg) {
		return "Only chat admins can create proposals."
	}
	parts := splitArgs(msg.CommandArguments())
	if len(parts) < 4 {
		return "Usage: /createproposal Title | Description | Choice1,Choice2,... | hours"
	}

	choices := make([]string, 0)
	for _, c := range strings.Split(parts[2], ",") {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			choices = append(choices, trimmed)
		}
	}
	hours, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return "Duration must be a whole number of hours."
	}

	caller, err := callerKey(ctx, svc, msg)
	if err != nil {
		return userMessage(err)
	}
	proposal, err := svc.CreateProposal(ctx, caller, chatGroupID(msg.Chat.ID),
		parts[0], parts[1], choices, time.Duration(hours)*time.Hour)
	if err != nil {
		return "Failed to create proposal: " + userMessage(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Proposal created!\n%s\nID: %s\nVoting ends: %s\nChoices:\n",
		proposal.Title, proposal.ProposalID,
		time.Unix(proposal.VotingEnd, 0).UTC().Format("2006-01-02 15:04 UTC"))
	for i, c := range proposal.Choices {
		fmt.Fprintf(&sb, "  %d. %s\n", i, c)
	}
	fmt.Fprintf(&sb, "Vote with /vote %s <choice_number>", proposal.ProposalID)
	return sb.String()
}

func handleListProposals(ctx context.Context, queries *client.Client, msg *tgbotapi.Message) string {
	proposals, itemErrs, err := queries.ListProposals(ctx, chatGroupID(msg.Chat.ID))
	if errors.Is(err, models.ErrGroupNotFound) {
		return "This chat has no DAO group yet. Use /creategroup first."
	}
	if err != nil {
		return "Failed to fetch proposals: " + userMessage(err)
	}
	if len(proposals) == 0 && len(itemErrs) == 0 {
		return "No proposals found for this group."
	}

	now := time.Now().Unix()
	var sb strings.Builder
	sb.WriteString("Proposals:\n")
	for i, p := range proposals {
		status := "active"
		if p.Closed(now) {
			status = "ended"
		}
		fmt.Fprintf(&sb, "%d. %s [%s]\n   ID: %s\n   Ends: %s\n",
			i+1, p.Title, status, p.ProposalID,
			time.Unix(p.VotingEnd, 0).UTC().Format("2006-01-02 15:04 UTC"))
	}
	if len(itemErrs) > 0 {
		fmt.Fprintf(&sb, "(%d proposal records could not be read)", len(itemErrs))
	}
	return sb.String()
}

func handleVote(ctx context.Context, svc *service.GovernanceService, msg *tgbotapi.Message) string {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return "Usage: /vote <proposal_id> <choice_number>"
	}
	choice, err := strconv.Atoi(args[1])
	if err != nil || choice < 0 || choice > 255 {
		return "Choice must be a small non-negative number."
	}

	caller, err := callerKey(ctx, svc, msg)
	if err != nil {
		return userMessage(err)
	}
	_, err = svc.Vote(ctx, caller, chatGroupID(msg.Chat.ID), args[0], uint8(choice))
	if err != nil {
		return "Failed to vote: " + userMessage(err)
	}
	return fmt.Sprintf("Vote cast on %s, choice %d. Use /results %s to follow the tally.",
		args[0], choice, args[0])
}

func handleResults(ctx context.Context, svc *service.GovernanceService, msg *tgbotapi.Message) string {
	proposalID := strings.TrimSpace(msg.CommandArguments())
	if proposalID == "" {
		return "Usage: /results <proposal_id>"
	}
	result, err := svc.Tally(ctx, chatGroupID(msg.Chat.ID), proposalID)
	if err != nil {
		return "Failed to get results: " + userMessage(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for: %s\nBallots: %d, total weight: %d\n",
		result.Title, result.BallotCount, result.TotalWeight)
	for _, c := range result.Choices {
		percentage := 0.0
		if result.TotalWeight > 0 {
			percentage = float64(c.Weight) / float64(result.TotalWeight) * 100
		}
		fmt.Fprintf(&sb, "%d. %s - %d (%.1f%%)\n", c.Index, c.Label, c.Weight, percentage)
	}
	switch {
	case !result.Closed:
		sb.WriteString("Voting is still active.")
	case result.Winner >= 0:
		fmt.Fprintf(&sb, "Voting has ended. Winner: %s", result.Choices[result.Winner].Label)
	default:
		fmt.Fprintf(&sb, "Voting has ended in a tie between choices %v.", result.Tied)
	}
	return sb.String()
}

func handleStats(ctx context.Context, svc *service.GovernanceService) string {
	stats, err := svc.Statistics(ctx)
	if err != nil {
		return "Failed to load statistics: " + userMessage(err)
	}
	return fmt.Sprintf("Groups: %d\nMemberships: %d\nProposals: %d (open: %d)\nBallots: %d",
		stats.GroupCount, stats.MembershipCount, stats.ProposalCount,
		stats.OpenProposalCount, stats.BallotCount)
}

// callerKey resolves the sender to their derived public key, creating the
// account on first contact the same way /login does.
func callerKey(ctx context.Context, svc *service.GovernanceService, msg *tgbotapi.Message) (models.PublicKey, error) {
	if msg.From == nil {
		return models.PublicKey{}, errors.New("unable to identify user")
	}
	account, err := svc.LoginOrCreateAccount(ctx, externalID(msg.From), displayName(msg.From))
	if err != nil {
		return models.PublicKey{}, err
	}
	return account.PublicKey, nil
}

// targetUser resolves the member a management command refers to, either
// from a replied-to message or from a numeric Telegram id argument.
func targetUser(msg *tgbotapi.Message) (string, string, error) {
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target := msg.ReplyToMessage.From
		return externalID(target), displayName(target), nil
	}
	arg := strings.TrimSpace(msg.CommandArguments())
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return "", "", errors.New("reply to the member's message or pass their numeric Telegram id")
	}
	return fmt.Sprintf("tg:%d", id), "", nil
}

func isChatAdmin(api *tgbotapi.BotAPI, msg *tgbotapi.Message) bool {
	if msg.From == nil {
		return false
	}
	if msg.Chat.IsPrivate() {
		return true
	}
	member, err := api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: msg.Chat.ID,
			UserID: msg.From.ID,
		},
	})
	if err != nil {
		log.Println("admin status check failed:", err)
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func externalID(user *tgbotapi.User) string {
	return fmt.Sprintf("tg:%d", user.ID)
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return user.FirstName
}

// chatGroupID derives the stable group id for a chat, matching the
// "tg_<chat>" convention so the same chat always maps to the same group.
func chatGroupID(chatID int64) string {
	if chatID < 0 {
		chatID = -chatID
	}
	return fmt.Sprintf("tg_%d", chatID)
}

func splitArgs(args string) []string {
	raw := strings.Split(args, "|")
	parts := make([]string, 0, len(raw))
	for _, p := range raw {
		parts = append(parts, strings.TrimSpace(p))
	}
	return parts
}

// userMessage maps domain errors to human-readable responses.
func userMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotAdmin):
		return "you are not an admin of this DAO group"
	case errors.Is(err, models.ErrNotMember):
		return "you are not a member of this DAO group"
	case errors.Is(err, models.ErrAlreadyVoted):
		return "you have already voted on this proposal"
	case errors.Is(err, models.ErrProposalClosed):
		return "the voting period has ended"
	case errors.Is(err, models.ErrInvalidChoice):
		return "that choice number does not exist"
	case errors.Is(err, models.ErrAlreadyMember):
		return "they are already a member"
	case errors.Is(err, models.ErrCannotRemoveLastAdmin):
		return "the last remaining admin cannot be removed"
	case errors.Is(err, models.ErrGroupExists):
		return "this chat already has a DAO group"
	case errors.Is(err, models.ErrGroupNotFound):
		return "this chat has no DAO group yet, use /creategroup"
	case errors.Is(err, models.ErrProposalNotFound):
		return "no such proposal, check the id with /listproposals"
	case errors.Is(err, models.ErrAccountNotFound):
		return "they have no account here, so they cannot be a member"
	case errors.Is(err, models.ErrBalanceUnavailable):
		return "token balances are temporarily unavailable, try again later"
	case errors.Is(err, models.ErrNoVotingPower):
		return "your token balance is zero, so your vote carries no weight"
	default:
		return err.Error()
	}
}

func reply(api *tgbotapi.BotAPI, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := api.Send(msg); err != nil {
		log.Println("failed to send message:", err)
	}
}
