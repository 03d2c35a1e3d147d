package handler

import (
	"context"
	"net/http"

	"anoa.com/studyhub/internal/entity"
	groupDto "anoa.com/studyhub/internal/modules/group/dto"
	group "anoa.com/studyhub/internal/modules/group/service"
	"anoa.com/studyhub/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupHandler struct {
	service group.GroupService
}

func NewGroupHandler(service group.GroupService) *GroupHandler {
	return &GroupHandler{service: service}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	var req groupDto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	g, err := h.service.CreateGroup(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, groupDto.NewGroupResponse(g))
}

func (h *GroupHandler) EditGroup(c *gin.Context) {
	var req groupDto.EditGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	g, err := h.service.EditGroup(c.Request.Context(), userID, groupID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupDto.NewGroupResponse(g))
}

func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteGroup(c.Request.Context(), userID, groupID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

func (h *GroupHandler) ListMyGroups(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	groups, err := h.service.ListMyGroups(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]groupDto.GroupResponse, 0, len(groups))
	for i := range groups {
		data = append(data, groupDto.NewGroupResponse(&groups[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *GroupHandler) ListMembers(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	members, err := h.service.ListMembers(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]groupDto.MemberResponse, 0, len(members))
	for i := range members {
		data = append(data, groupDto.NewMemberResponse(&members[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *GroupHandler) SubmitJoinRequest(c *gin.Context) {
	var req groupDto.JoinGroupRequest
	// The message is optional, so an empty body is fine.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ResponseError(c, err)
			return
		}
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	jr, err := h.service.SubmitJoinRequest(c.Request.Context(), userID, groupID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, groupDto.NewJoinRequestResponse(jr))
}

func (h *GroupHandler) ListJoinRequests(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	reqs, err := h.service.ListJoinRequests(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]groupDto.JoinRequestResponse, 0, len(reqs))
	for i := range reqs {
		data = append(data, groupDto.NewJoinRequestResponse(&reqs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *GroupHandler) ApproveJoinRequest(c *gin.Context) {
	h.resolve(c, h.service.ApproveJoinRequest)
}

func (h *GroupHandler) RejectJoinRequest(c *gin.Context) {
	h.resolve(c, h.service.RejectJoinRequest)
}

func (h *GroupHandler) resolve(c *gin.Context, fn func(ctx context.Context, userID, requestID uuid.UUID) (*entity.JoinRequest, error)) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	requestID, err := response.ParamUUID(c, "request_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	jr, err := fn(c.Request.Context(), userID, requestID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupDto.NewJoinRequestResponse(jr))
}

func (h *GroupHandler) Leave(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.Leave(c.Request.Context(), userID, groupID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "You left the group"})
}

func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, groupID, memberID, ok := h.memberParams(c)
	if !ok {
		return
	}
	if err := h.service.RemoveMember(c.Request.Context(), userID, groupID, memberID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

func (h *GroupHandler) SetRank(c *gin.Context) {
	var req groupDto.SetRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, groupID, memberID, ok := h.memberParams(c)
	if !ok {
		return
	}
	if err := h.service.SetRank(c.Request.Context(), userID, groupID, memberID, req.Rank); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rank updated", "rank": req.Rank})
}

func (h *GroupHandler) memberParams(c *gin.Context) (userID, groupID, memberID uuid.UUID, ok bool) {
	var err error
	if userID, err = response.GetUserID(c); err != nil {
		response.ResponseError(c, err)
		return
	}
	if groupID, err = response.ParamUUID(c, "group_id"); err != nil {
		response.ResponseError(c, err)
		return
	}
	if memberID, err = response.ParamUUID(c, "user_id"); err != nil {
		response.ResponseError(c, err)
		return
	}
	return userID, groupID, memberID, true
}

func (h *GroupHandler) CreateInvite(c *gin.Context) {
	var req groupDto.CreateInviteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ResponseError(c, err)
			return
		}
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	invite, err := h.service.CreateInvite(c.Request.Context(), userID, groupID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, groupDto.NewInviteResponse(invite))
}

func (h *GroupHandler) ListInvites(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	groupID, err := response.ParamUUID(c, "group_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	invites, err := h.service.ListInvites(c.Request.Context(), userID, groupID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	data := make([]groupDto.InviteResponse, 0, len(invites))
	for i := range invites {
		data = append(data, groupDto.NewInviteResponse(&invites[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *GroupHandler) DeactivateInvite(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	inviteID, err := response.ParamUUID(c, "invite_id")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeactivateInvite(c.Request.Context(), userID, inviteID); err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Invite deactivated"})
}

func (h *GroupHandler) JoinByToken(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	token, err := response.ParamUUID(c, "token")
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	g, err := h.service.JoinByToken(c.Request.Context(), userID, token)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupDto.NewGroupResponse(g))
}

func (h *GroupHandler) JoinByCode(c *gin.Context) {
	var req groupDto.JoinByCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, err)
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	g, err := h.service.JoinByCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	c.JSON(http.StatusOK, groupDto.NewGroupResponse(g))
}
